// Package static reads images written by package create: point lookups by
// descent from the root, range scans along the leaf level's next links.
package static

import (
	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/simplekv/dbms/index"
	"github.com/btree-query-bench/simplekv/dbms/layout"
	"github.com/btree-query-bench/simplekv/dbms/pager"
)

var ErrSizeMismatch = errors.New("static: file size does not match configuration")

// ErrUnsearchable is returned by lookups on an image whose shape is not
// balanced: its internal pointers do not land on the level below, so a
// descent cannot be trusted. Check and WalkLevel still work on such images.
var ErrUnsearchable = errors.New("static: tree shape is not searchable")

// Image is an open, read-only image. The file carries no header, so the
// Config it was built with must be supplied again.
type Image struct {
	pg     *pager.Reader
	cfg    layout.Config
	levels []layout.LevelPlan
}

var _ index.Reader = (*Image)(nil)

// Open opens the image at path built from cfg.
func Open(path string, cfg layout.Config, cacheBlocks int64) (*Image, error) {
	levels, err := layout.Plan(cfg)
	if err != nil {
		return nil, err
	}
	pg, err := pager.Open(path, cacheBlocks)
	if err != nil {
		return nil, err
	}
	if uint64(pg.Size()) != cfg.FileSize() {
		pg.Close()
		return nil, errors.Wrapf(ErrSizeMismatch, "%s is %d bytes, want %d", path, pg.Size(), cfg.FileSize())
	}
	return &Image{pg: pg, cfg: cfg, levels: levels}, nil
}

// Config returns the shape the image was opened with.
func (im *Image) Config() layout.Config { return im.cfg }

// Levels returns the level plan of the image.
func (im *Image) Levels() []layout.LevelPlan { return im.levels }

// Node reads the node at byte offset off.
func (im *Image) Node(off uint64) (layout.Node, error) {
	if off >= im.cfg.IndexSize() {
		return layout.Node{}, errors.Newf("static: node offset %d outside index region", off)
	}
	b, err := im.pg.ReadBlock(off)
	if err != nil {
		return layout.Node{}, err
	}
	return layout.UnmarshalNode(b)
}

// findLeaf descends from the root. With clamp unset a key below a node's first
// slot is reported as missing; with clamp set the descent takes slot 0.
func (im *Image) findLeaf(key uint64, clamp bool) (layout.Node, bool, error) {
	off := uint64(0)
	for level := 0; ; level++ {
		n, err := im.Node(off)
		if err != nil {
			return layout.Node{}, false, err
		}
		if n.IsLeaf() {
			return n, true, nil
		}
		i := n.Search(key)
		if i < 0 {
			if !clamp {
				return layout.Node{}, false, nil
			}
			i = 0
		}
		if off, err = layout.Decode(n.Ptrs[i]); err != nil {
			return layout.Node{}, false, err
		}
		if err := im.childOf(level, off); err != nil {
			return layout.Node{}, false, err
		}
	}
}

// childOf checks that off is the start of a node on the level below level.
func (im *Image) childOf(level int, off uint64) error {
	if level+1 >= len(im.levels) {
		return errors.Wrapf(ErrCorrupt, "level %d is the leaf level but has child %d", level, off)
	}
	below := im.levels[level+1]
	lo := layout.NodeOffset(below.First)
	hi := layout.NodeOffset(below.First + below.Nodes)
	if off >= lo && off < hi && (off-lo)%layout.NodeSize == 0 {
		return nil
	}
	err := ErrCorrupt
	if !im.cfg.Balanced() {
		err = ErrUnsearchable
	}
	return errors.Wrapf(err, "level %d: child %d outside level %d [%d, %d)", level, off, level+1, lo, hi)
}

func (im *Image) searchable() error {
	if im.cfg.Balanced() {
		return nil
	}
	return errors.Wrapf(ErrUnsearchable, "node counts %v with max key %d", im.cfg.NodeCounts, im.cfg.MaxKey)
}

// Get returns the value stored for key. Unbalanced images fail with
// ErrUnsearchable.
func (im *Image) Get(key uint64) ([]byte, bool, error) {
	if err := im.searchable(); err != nil {
		return nil, false, err
	}
	leaf, ok, err := im.findLeaf(key, false)
	if err != nil || !ok {
		return nil, false, err
	}
	i := leaf.Search(key)
	if i < 0 || leaf.Keys[i] != key {
		return nil, false, nil
	}
	v, err := im.value(leaf.Ptrs[i])
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (im *Image) value(p layout.Ptr) ([]byte, error) {
	off, err := layout.Decode(p)
	if err != nil {
		return nil, err
	}
	if off < im.cfg.IndexSize() || off+layout.ValueSize > im.cfg.FileSize() {
		return nil, errors.Newf("static: value offset %d outside value log", off)
	}
	slot, err := im.pg.ReadSpan(off, layout.ValueSize)
	if err != nil {
		return nil, err
	}
	v := layout.Value(slot)
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// WalkLevel visits the nodes of one level by following next links from the
// level's first node.
func (im *Image) WalkLevel(level int, fn func(off uint64, n layout.Node) error) error {
	if level < 0 || level >= len(im.levels) {
		return errors.Newf("static: no level %d", level)
	}
	off := layout.NodeOffset(im.levels[level].First)
	for {
		n, err := im.Node(off)
		if err != nil {
			return err
		}
		if err := fn(off, n); err != nil {
			return err
		}
		if n.Next == layout.NoNext {
			return nil
		}
		off = n.Next
	}
}

// Close releases the underlying file.
func (im *Image) Close() error { return im.pg.Close() }

// ─── Range Iterator ───────────────────────────────────────────────────────────

// RangeIterator yields leaf keys in [start, end] with their values.
type RangeIterator struct {
	im   *Image
	end  uint64
	leaf layout.Node
	idx  int
	key  uint64
	val  []byte
	err  error
	done bool
}

// Range returns an iterator over leaf keys in [start, end] inclusive.
func (im *Image) Range(start, end uint64) (index.Iterator, error) {
	if err := im.searchable(); err != nil {
		return nil, err
	}
	leaf, _, err := im.findLeaf(start, true)
	if err != nil {
		return nil, err
	}
	idx := leaf.Search(start)
	if idx < 0 || leaf.Keys[idx] < start {
		idx++
	}
	return &RangeIterator{im: im, end: end, leaf: leaf, idx: idx, done: start > end}, nil
}

func (it *RangeIterator) Next() bool {
	if it.done {
		return false
	}
	for {
		if it.idx < len(it.leaf.Keys) {
			k := it.leaf.Keys[it.idx]
			if k > it.end {
				it.done = true
				return false
			}
			v, err := it.im.value(it.leaf.Ptrs[it.idx])
			if err != nil {
				it.err = err
				it.done = true
				return false
			}
			it.idx++
			it.key = k
			it.val = v
			return true
		}
		if it.leaf.Next == layout.NoNext {
			it.done = true
			return false
		}
		leaf, err := it.im.Node(it.leaf.Next)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		it.leaf = leaf
		it.idx = 0
	}
}

func (it *RangeIterator) Key() uint64   { return it.key }
func (it *RangeIterator) Value() []byte { return it.val }
func (it *RangeIterator) Error() error  { return it.err }
func (it *RangeIterator) Close() error  { return nil }
