package static

import (
	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/simplekv/dbms/layout"
)

var ErrCorrupt = errors.New("static: image is inconsistent with its configuration")

// Check re-reads the whole index region and verifies it against the plan:
// node counts and types per level, next links, key order, that every internal
// pointer names a node of the level below, and that leaf pointers cover
// consecutive value slots from the start of the log. On an unbalanced image
// the first stray internal pointer is reported as ErrUnsearchable.
func (im *Image) Check() error {
	nextValue := im.cfg.IndexSize()
	for _, lv := range im.levels {
		var count, prevMax uint64
		want := layout.NodeOffset(lv.First)
		err := im.WalkLevel(lv.Level, func(off uint64, n layout.Node) error {
			if off != want {
				return errors.Wrapf(ErrCorrupt, "level %d: node at %d, want %d", lv.Level, off, want)
			}
			if n.IsLeaf() != lv.Leaf {
				return errors.Wrapf(ErrCorrupt, "level %d: node at %d is %s", lv.Level, off, n.Type)
			}
			for k, key := range n.Keys {
				if key < prevMax {
					return errors.Wrapf(ErrCorrupt, "level %d: key %d at node %d slot %d goes backwards", lv.Level, key, off, k)
				}
				prevMax = key
				p, err := layout.Decode(n.Ptrs[k])
				if err != nil {
					return errors.Wrapf(ErrCorrupt, "level %d: node %d slot %d: %v", lv.Level, off, k, err)
				}
				if !n.IsLeaf() {
					if err := im.childOf(lv.Level, p); err != nil {
						return errors.Wrapf(err, "node %d slot %d", off, k)
					}
					continue
				}
				if p != nextValue {
					return errors.Wrapf(ErrCorrupt, "leaf %d slot %d points at %d, want %d", off, k, p, nextValue)
				}
				nextValue += layout.ValueSize
			}
			count++
			want += layout.NodeSize
			return nil
		})
		if err != nil {
			return err
		}
		if count != lv.Nodes {
			return errors.Wrapf(ErrCorrupt, "level %d has %d nodes, want %d", lv.Level, count, lv.Nodes)
		}
	}
	return nil
}
