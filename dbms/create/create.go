// Package create bulk-loads a simplekv image: the static B+ tree planned by
// package layout followed by the value log, written through aligned staging
// buffers in one pass.
//
// Nothing here exits the process. Every failure, including a short write,
// comes back as an error and leaves the file partially written.
package create

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/btree-query-bench/simplekv/dbms/layout"
	"github.com/btree-query-bench/simplekv/dbms/pager"
)

var (
	// ErrShortWrite marks a write that did not take every staged byte.
	ErrShortWrite = pager.ErrShortWrite
	// ErrAlloc marks a staging buffer that could not be mapped.
	ErrAlloc = pager.ErrAlloc
)

// Stats describes a finished build.
type Stats struct {
	Nodes      uint64
	Records    uint64
	IndexBytes uint64
	LogBytes   uint64
}

// Total is the number of bytes written.
func (s Stats) Total() uint64 { return s.IndexBytes + s.LogBytes }

// Build writes the image for cfg to w, which must be positioned at offset 0.
// The index region is written completely before the first log record.
func Build(w io.Writer, cfg layout.Config, opts ...Option) (Stats, error) {
	o := buildOptions(opts)
	log := o.logger

	if cfg.Fanout != 0 && cfg.Fanout != layout.Fanout {
		return Stats{}, errors.Wrapf(layout.ErrFanout, "images are written with fan-out %d, got %d", layout.Fanout, cfg.Fanout)
	}
	planner, err := layout.NewPlanner(cfg)
	if err != nil {
		return Stats{}, err
	}
	log.Info("load the database", "layers", cfg.Layers(), "nodes", cfg.TotalNodes(), "max_key", cfg.MaxKey)
	if !cfg.Balanced() {
		log.Warn("tree shape is not balanced; some nodes are unreachable or pointers run past their level",
			"node_counts", cfg.NodeCounts, "max_key", cfg.MaxKey)
	}

	var st Stats

	iw, err := newIndexWriter(w, o.bufferBytes, log)
	if err != nil {
		return st, err
	}
	st.Nodes, err = iw.write(planner)
	st.IndexBytes = st.Nodes * layout.NodeSize
	if err != nil {
		return st, err
	}
	if st.Nodes != cfg.TotalNodes() {
		return st, errors.AssertionFailedf("planned %d nodes, wrote %d", cfg.TotalNodes(), st.Nodes)
	}

	log.Info("writing value heap", "offset", cfg.IndexSize(), "records", cfg.LogRecords())
	lw, err := newLogWriter(w, o.bufferBytes)
	if err != nil {
		return st, err
	}
	st.Records, err = lw.write(cfg.MaxKey)
	st.LogBytes = st.Records * layout.RecordSize
	if err != nil {
		return st, err
	}

	log.Info("image written", "index_bytes", st.IndexBytes, "log_bytes", st.LogBytes)
	return st, nil
}

// CreateFile builds the image for cfg into a new file at path, syncs it and
// closes it.
func CreateFile(path string, cfg layout.Config, opts ...Option) (st Stats, err error) {
	o := buildOptions(opts)
	f, err := pager.Create(path, o.direct)
	if err != nil {
		return st, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(cerr, "close %s", path))
		}
	}()

	st, err = Build(f, cfg, opts...)
	if err != nil {
		return st, err
	}
	if err := f.Sync(); err != nil {
		return st, errors.Wrapf(err, "sync %s", path)
	}
	return st, nil
}
