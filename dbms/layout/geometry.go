// Package layout defines the on-disk geometry of a simplekv image and plans
// the static B+ tree that is bulk-loaded into it.
//
// File layout:
//
//	[ index region: level 0 nodes, level 1 nodes, ... leaf level nodes ]
//	[ value log:    record 0, record 1, ...                            ]
//
// Node layout (NodeSize bytes, little-endian):
//
//	[0-7]      next   byte offset of the next node in the same level, NoNext for the last
//	[8-15]     type   TypeInternal / TypeLeaf
//	[16-263]   key    Fanout uint64 keys
//	[264-511]  ptr    Fanout encoded pointers
//
// Log record layout (RecordSize bytes): LogCapacity slots of ValueSize bytes,
// each a right-justified decimal rendering of its key followed by a NUL.
//
// There is no header, magic number or checksum.
package layout

const (
	BlockSize = 512 // storage block size and staging buffer alignment

	metaSize = 8 // next, type
	keySize  = 8
	ptrSize  = 8

	// Fanout is the number of key/pointer slots per node.
	Fanout = (BlockSize - 2*metaSize) / (keySize + ptrSize)

	// NodeSize is the on-disk size of one node; nodes are block aligned.
	NodeSize = BlockSize

	// ValueSize is one value slot: 63 right-justified digits and a NUL.
	ValueSize = 64
	// LogCapacity is the number of value slots per log record.
	LogCapacity = BlockSize / ValueSize
	// RecordSize is the on-disk size of one log record.
	RecordSize = LogCapacity * ValueSize

	// NoNext marks the last node of a level. Offset 0 is the root, which is
	// never anybody's successor.
	NoNext = uint64(0)

	// Byte offsets of the node fields.
	OffNext = 0
	OffType = 8
	OffKeys = 16
	OffPtrs = OffKeys + Fanout*keySize
)

// Type is the on-disk node kind.
type Type uint64

const (
	TypeInternal Type = 0
	TypeLeaf     Type = 1
)

func (t Type) String() string {
	switch t {
	case TypeInternal:
		return "internal"
	case TypeLeaf:
		return "leaf"
	default:
		return "unknown"
	}
}
