package create

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/simplekv/dbms/layout"
	"github.com/btree-query-bench/simplekv/dbms/pager"
)

// logWriter renders the value heap that follows the index region.
type logWriter struct {
	buf *pager.BlockBuffer
}

func newLogWriter(w io.Writer, bufferBytes int) (*logWriter, error) {
	buf, err := pager.NewBlockBuffer(w, layout.RecordSize, bufferBytes)
	if err != nil {
		return nil, errors.Wrap(err, "log buffer")
	}
	return &logWriter{buf: buf}, nil
}

// write emits records for keys 0..maxKey. The last record is filled to
// LogCapacity slots even past maxKey.
func (lw *logWriter) write(maxKey uint64) (records uint64, err error) {
	defer func() {
		if rerr := lw.buf.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for i := uint64(0); i < maxKey; i += layout.LogCapacity {
		if err := lw.buf.Append(layout.LogRecord{First: i}); err != nil {
			return records, errors.Wrapf(err, "partial write of log data at key %d", i)
		}
		records++
	}
	if err := lw.buf.Flush(); err != nil {
		return records, errors.Wrap(err, "partial write of log data")
	}
	return records, nil
}
