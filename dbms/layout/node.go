package layout

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

var ErrNodeShape = errors.New("layout: node does not have Fanout slots")

// Node is one fixed-size index record. Every node carries exactly
// SlotsPerNode key/pointer pairs.
type Node struct {
	Next uint64
	Type Type
	Keys []uint64
	Ptrs []Ptr
}

// IsLeaf reports whether Ptrs name value slots.
func (n *Node) IsLeaf() bool { return n.Type == TypeLeaf }

// MarshalBlock encodes n into dst[:NodeSize].
func (n *Node) MarshalBlock(dst []byte) error {
	if len(n.Keys) != Fanout || len(n.Ptrs) != Fanout {
		return errors.Wrapf(ErrNodeShape, "keys=%d ptrs=%d", len(n.Keys), len(n.Ptrs))
	}
	if len(dst) < NodeSize {
		return errors.Newf("layout: node needs %d bytes, got %d", NodeSize, len(dst))
	}
	binary.LittleEndian.PutUint64(dst[OffNext:], n.Next)
	binary.LittleEndian.PutUint64(dst[OffType:], uint64(n.Type))
	for k := 0; k < Fanout; k++ {
		binary.LittleEndian.PutUint64(dst[OffKeys+k*keySize:], n.Keys[k])
		binary.LittleEndian.PutUint64(dst[OffPtrs+k*ptrSize:], uint64(n.Ptrs[k]))
	}
	return nil
}

// UnmarshalNode decodes a node written by MarshalBlock.
func UnmarshalNode(src []byte) (Node, error) {
	if len(src) < NodeSize {
		return Node{}, errors.Newf("layout: short node: %d bytes", len(src))
	}
	n := Node{
		Next: binary.LittleEndian.Uint64(src[OffNext:]),
		Type: Type(binary.LittleEndian.Uint64(src[OffType:])),
		Keys: make([]uint64, Fanout),
		Ptrs: make([]Ptr, Fanout),
	}
	if n.Type != TypeInternal && n.Type != TypeLeaf {
		return Node{}, errors.Newf("layout: bad node type %d", uint64(n.Type))
	}
	for k := 0; k < Fanout; k++ {
		n.Keys[k] = binary.LittleEndian.Uint64(src[OffKeys+k*keySize:])
		n.Ptrs[k] = Ptr(binary.LittleEndian.Uint64(src[OffPtrs+k*ptrSize:]))
	}
	return n, nil
}

// Search returns the last slot whose key is <= key, or -1 if key sorts
// before the first slot.
func (n *Node) Search(key uint64) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		m := (lo + hi) / 2
		if n.Keys[m] <= key {
			lo = m + 1
		} else {
			hi = m
		}
	}
	return lo - 1
}
