//go:build unix

// Package pager owns the file I/O of a simplekv image: the aligned staging
// buffers used while the image is written, and block reads with a cache once
// it exists.
package pager

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/btree-query-bench/simplekv/dbms/layout"
)

// Block-sized reads only; BlockSize divides every node and record offset.
const BlockSize = layout.BlockSize

var ErrDirectUnsupported = errors.New("pager: O_DIRECT is not supported on this platform")

// Create opens path for a fresh image, truncating anything already there.
// With direct set the file bypasses the page cache; every write must then be
// a whole number of blocks from an aligned buffer, which BlockBuffer gives.
func Create(path string, direct bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if direct {
		if directFlag == 0 {
			return nil, ErrDirectUnsupported
		}
		flags |= directFlag
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "pager: create %s", path)
	}
	return f, nil
}

// Reader reads blocks of an existing image and caches recently used ones.
type Reader struct {
	file  *os.File
	cache *ristretto.Cache[uint64, []byte]
	size  int64
}

// Open opens an image read-only. cacheBlocks bounds the number of blocks
// kept in memory; zero disables the cache.
func Open(path string, cacheBlocks int64) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "pager: open %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pager: stat %s", path)
	}

	r := &Reader{file: f, size: info.Size()}
	if cacheBlocks > 0 {
		r.cache, err = ristretto.NewCache(&ristretto.Config[uint64, []byte]{
			NumCounters: cacheBlocks * 10,
			MaxCost:     cacheBlocks,
			BufferItems: 64,
		})
		if err != nil {
			f.Close()
			return nil, errors.Wrap(err, "pager: block cache")
		}
	}
	return r, nil
}

// ReadBlock returns the block starting at off, which must be block aligned.
// The returned slice may be shared with the cache and must not be modified.
func (r *Reader) ReadBlock(off uint64) ([]byte, error) {
	if off%BlockSize != 0 {
		return nil, errors.Newf("pager: unaligned block offset %d", off)
	}
	if off+BlockSize > uint64(r.size) {
		return nil, errors.Newf("pager: block %d past end of file (%d bytes)", off, r.size)
	}
	if r.cache != nil {
		if b, ok := r.cache.Get(off); ok {
			return b, nil
		}
	}
	b, err := r.readBlockFromDisk(off)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(off, b, 1)
	}
	return b, nil
}

// ReadSpan returns n bytes at off; the range must not cross a block boundary.
func (r *Reader) ReadSpan(off uint64, n int) ([]byte, error) {
	base := off &^ (BlockSize - 1)
	if off-base+uint64(n) > BlockSize {
		return nil, errors.Newf("pager: read of %d bytes at %d crosses a block", n, off)
	}
	b, err := r.ReadBlock(base)
	if err != nil {
		return nil, err
	}
	return b[off-base : off-base+uint64(n)], nil
}

// Size is the image length in bytes.
func (r *Reader) Size() int64 { return r.size }

// Close releases the cache and the file.
func (r *Reader) Close() error {
	if r.cache != nil {
		r.cache.Close()
	}
	return r.file.Close()
}

func (r *Reader) readBlockFromDisk(off uint64) ([]byte, error) {
	b := make([]byte, BlockSize)
	if _, err := r.file.ReadAt(b, int64(off)); err != nil {
		return nil, errors.Wrapf(err, "pager: read block at %d", off)
	}
	return b, nil
}
