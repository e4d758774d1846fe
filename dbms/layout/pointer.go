package layout

import (
	"github.com/cockroachdb/errors"
)

// Ptr is an encoded pointer as stored in Node.Ptrs.
//
// Encoding: the raw byte offset with bit 63 set. Whether the target is a
// child node or a value slot is decided by the type of the node holding the
// pointer, not by the pointer itself.
type Ptr uint64

const ptrTag = uint64(1) << 63

// MaxOffset is the largest byte offset a Ptr can carry.
const MaxOffset = ptrTag - 1

var (
	ErrPointerRange    = errors.New("layout: offset not representable as pointer")
	ErrUntaggedPointer = errors.New("layout: pointer is not tagged")
)

// Encode converts a byte offset into its on-disk pointer.
func Encode(offset uint64) (Ptr, error) {
	if offset > MaxOffset {
		return 0, errors.Wrapf(ErrPointerRange, "offset %d", offset)
	}
	return Ptr(offset | ptrTag), nil
}

// MustEncode is Encode for offsets already bounded by a validated Config.
func MustEncode(offset uint64) Ptr {
	p, err := Encode(offset)
	if err != nil {
		panic(err)
	}
	return p
}

// Decode returns the byte offset a pointer refers to.
func Decode(p Ptr) (uint64, error) {
	if uint64(p)&ptrTag == 0 {
		return 0, errors.Wrapf(ErrUntaggedPointer, "ptr %#x", uint64(p))
	}
	return uint64(p) &^ ptrTag, nil
}

// Offset is Decode without the tag check.
func (p Ptr) Offset() uint64 { return uint64(p) &^ ptrTag }
