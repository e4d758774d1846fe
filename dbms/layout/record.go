package layout

import (
	"bytes"
	"strconv"

	"github.com/cockroachdb/errors"
)

// valueWidth is the printed width of a value; the last byte of a slot is NUL.
const valueWidth = ValueSize - 1

// LogRecord is one value-log record holding keys First .. First+LogCapacity-1.
type LogRecord struct {
	First uint64
}

// MarshalBlock renders every slot of r into dst[:RecordSize].
func (r LogRecord) MarshalBlock(dst []byte) error {
	if len(dst) < RecordSize {
		return errors.Newf("layout: record needs %d bytes, got %d", RecordSize, len(dst))
	}
	var digits [20]byte
	for j := 0; j < LogCapacity; j++ {
		slot := dst[j*ValueSize : (j+1)*ValueSize]
		d := strconv.AppendUint(digits[:0], r.First+uint64(j), 10)
		pad := valueWidth - len(d)
		for i := 0; i < pad; i++ {
			slot[i] = ' '
		}
		copy(slot[pad:valueWidth], d)
		slot[valueWidth] = 0
	}
	return nil
}

// Value returns the printed value in a slot without padding.
func Value(slot []byte) []byte {
	if i := bytes.IndexByte(slot, 0); i >= 0 {
		slot = slot[:i]
	}
	return bytes.TrimLeft(slot, " ")
}

// ParseValue decodes a slot back into the key it was rendered from.
func ParseValue(slot []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(Value(slot)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "layout: value slot")
	}
	return v, nil
}
