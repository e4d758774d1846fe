package layout

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrNoLevels   = errors.New("layout: tree needs at least one level")
	ErrEmptyLevel = errors.New("layout: level has no nodes")
	ErrFanout     = errors.New("layout: fan-out must be positive")
	ErrTooLarge   = errors.New("layout: image exceeds pointer range")
)

// Config is the immutable shape of one image. Build it once and pass it by
// value; nothing in this package keeps a reference to NodeCounts.
type Config struct {
	// NodeCounts holds the number of nodes per level, root level first.
	NodeCounts []uint64
	// MaxKey is the exclusive upper bound of the key domain.
	MaxKey uint64
	// Fanout overrides the planner's slots per node. Zero means Fanout; the
	// writers only accept the default.
	Fanout int
}

// NewConfig copies counts so later changes by the caller cannot leak in.
func NewConfig(counts []uint64, maxKey uint64) Config {
	return Config{NodeCounts: append([]uint64(nil), counts...), MaxKey: maxKey}
}

// Dense returns the reference sizing for a tree of the given height: one
// root, every level Fanout times wider than its parent, and exactly one key
// per leaf slot.
func Dense(layers int) (Config, error) {
	if layers < 1 {
		return Config{}, errors.Wrapf(ErrNoLevels, "layers=%d", layers)
	}
	counts := make([]uint64, layers)
	counts[0] = 1
	for i := 1; i < layers; i++ {
		hi, lo := bits.Mul64(counts[i-1], Fanout)
		if hi != 0 {
			return Config{}, errors.Wrapf(ErrTooLarge, "layers=%d", layers)
		}
		counts[i] = lo
	}
	hi, maxKey := bits.Mul64(counts[layers-1], Fanout)
	if hi != 0 {
		return Config{}, errors.Wrapf(ErrTooLarge, "layers=%d", layers)
	}
	cfg := Config{NodeCounts: counts, MaxKey: maxKey}
	return cfg, cfg.Validate()
}

// ParseNodeCounts parses a comma separated list such as "1,31,961".
func ParseNodeCounts(s string) ([]uint64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, ErrNoLevels
	}
	parts := strings.Split(s, ",")
	counts := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "layout: node count %q", p)
		}
		counts = append(counts, n)
	}
	return counts, nil
}

// Validate rejects shapes the planner would divide by zero on, and images
// whose offsets do not fit in a Ptr.
func (c Config) Validate() error {
	if len(c.NodeCounts) == 0 {
		return ErrNoLevels
	}
	if c.Fanout < 0 {
		return errors.Wrapf(ErrFanout, "fanout=%d", c.Fanout)
	}
	var total uint64
	for i, n := range c.NodeCounts {
		if n == 0 {
			return errors.Wrapf(ErrEmptyLevel, "level %d", i)
		}
		var carry uint64
		total, carry = bits.Add64(total, n, 0)
		if carry != 0 {
			return errors.Wrapf(ErrTooLarge, "node count overflow at level %d", i)
		}
	}
	end, ok := c.lastOffset(total)
	if !ok || end > MaxOffset {
		return errors.Wrapf(ErrTooLarge, "%d nodes, max key %d", total, c.MaxKey)
	}
	f := uint64(c.fanout())
	start := uint64(0)
	for i := 0; i+1 < len(c.NodeCounts); i++ {
		start += c.NodeCounts[i]
		hi, slots := bits.Mul64(c.NodeCounts[i], f)
		last, carry := bits.Add64(start, slots, 0)
		if hi != 0 || carry != 0 || last > MaxOffset/NodeSize {
			return errors.Wrapf(ErrTooLarge, "child pointers of level %d", i)
		}
	}
	return nil
}

// lastOffset is the end of the furthest region a pointer can name: the index,
// followed by the value log or by the slots the leaves point at, whichever is
// longer.
func (c Config) lastOffset(total uint64) (uint64, bool) {
	hi, index := bits.Mul64(total, NodeSize)
	if hi != 0 {
		return 0, false
	}
	leaves := c.NodeCounts[len(c.NodeCounts)-1]
	hi, slotBytes := bits.Mul64(leaves, uint64(c.fanout())*ValueSize)
	if hi != 0 {
		return 0, false
	}
	hi, logBytes := bits.Mul64(ceilDiv(c.MaxKey, LogCapacity), RecordSize)
	if hi != 0 {
		return 0, false
	}
	end, carry := bits.Add64(index, max(slotBytes, logBytes), 0)
	return end, carry == 0
}

func (c Config) fanout() int {
	if c.Fanout == 0 {
		return Fanout
	}
	return c.Fanout
}

// Layers is the tree height.
func (c Config) Layers() int { return len(c.NodeCounts) }

// SlotsPerNode is the effective fan-out.
func (c Config) SlotsPerNode() int { return c.fanout() }

// TotalNodes is the number of nodes over all levels.
func (c Config) TotalNodes() uint64 {
	var total uint64
	for _, n := range c.NodeCounts {
		total += n
	}
	return total
}

// LevelStart is the global index of the first node of level i.
func (c Config) LevelStart(i int) uint64 {
	var start uint64
	for _, n := range c.NodeCounts[:i] {
		start += n
	}
	return start
}

// IndexSize is the byte length of the index region, which is also the
// offset of the first log record.
func (c Config) IndexSize() uint64 { return c.TotalNodes() * NodeSize }

// LogRecords is the number of records in the value log.
func (c Config) LogRecords() uint64 { return ceilDiv(c.MaxKey, LogCapacity) }

// LogSize is the byte length of the value log.
func (c Config) LogSize() uint64 { return c.LogRecords() * RecordSize }

// FileSize is the total image length.
func (c Config) FileSize() uint64 { return c.IndexSize() + c.LogSize() }

// NodeOffset is the byte offset of the node with global index n.
func NodeOffset(n uint64) uint64 { return n * NodeSize }

// ValueOffset is the byte offset of value slot v in the log.
func (c Config) ValueOffset(v uint64) uint64 {
	return c.IndexSize() + (v/LogCapacity)*RecordSize + (v%LogCapacity)*ValueSize
}

// Balanced reports whether every internal slot names exactly one node of the
// next level and every leaf slot exactly one key. Other shapes are still
// written, but some nodes are unreachable or some pointers run past their
// level.
func (c Config) Balanced() bool {
	f := uint64(c.fanout())
	for i := 0; i+1 < len(c.NodeCounts); i++ {
		if c.NodeCounts[i]*f != c.NodeCounts[i+1] {
			return false
		}
	}
	if len(c.NodeCounts) == 0 {
		return false
	}
	return c.NodeCounts[len(c.NodeCounts)-1]*f == c.MaxKey
}

func ceilDiv(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return 1 + (a-1)/b
}
