package create

import (
	"io"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/simplekv/dbms/layout"
	"github.com/btree-query-bench/simplekv/dbms/pager"
)

// indexWriter drains a planner into the index region.
type indexWriter struct {
	buf *pager.BlockBuffer
	log *slog.Logger
}

func newIndexWriter(w io.Writer, bufferBytes int, log *slog.Logger) (*indexWriter, error) {
	buf, err := pager.NewBlockBuffer(w, layout.NodeSize, bufferBytes)
	if err != nil {
		return nil, errors.Wrap(err, "index buffer")
	}
	return &indexWriter{buf: buf, log: log}, nil
}

// write returns the number of nodes written. The buffer is released on every
// path.
func (iw *indexWriter) write(p *layout.Planner) (nodes uint64, err error) {
	defer func() {
		if rerr := iw.buf.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for _, lv := range p.Levels() {
		iw.log.Debug("layer", "level", lv.Level, "nodes", lv.Nodes, "extent", lv.Extent, "sub_extent", lv.SubExtent)
	}
	for {
		n, ok := p.Next()
		if !ok {
			break
		}
		if err := iw.buf.Append(&n); err != nil {
			return nodes, errors.Wrapf(err, "partial write of index node %d", nodes)
		}
		nodes++
	}
	if err := iw.buf.Flush(); err != nil {
		return nodes, errors.Wrap(err, "partial write of index node")
	}
	return nodes, nil
}
