//go:build unix

package pager

import (
	"io"
	"unsafe"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"

	"github.com/btree-query-bench/simplekv/dbms/layout"
)

var (
	ErrAlloc      = errors.New("pager: cannot allocate staging buffer")
	ErrShortWrite = errors.New("pager: short write")
	ErrReleased   = errors.New("pager: buffer released")
)

// Block is a fixed-size record that can render itself into a buffer slot.
type Block interface {
	MarshalBlock(dst []byte) error
}

// BlockBuffer stages fixed-size records in a block-aligned arena and writes
// the arena to w with one Write call each time it fills. The arena is an
// anonymous mapping, so it is page aligned and usable with O_DIRECT.
//
// Contract: Append records; a full buffer flushes itself; call Flush once at
// the end for the remainder, then Release.
type BlockBuffer struct {
	w       io.Writer
	mem     []byte
	recSize int
	cap     int // records per buffer
	n       int // records staged

	flushes int
	written int64
}

// NewBlockBuffer maps a buffer holding as many recSize records as fit in
// capBytes (at least one).
func NewBlockBuffer(w io.Writer, recSize, capBytes int) (*BlockBuffer, error) {
	if recSize <= 0 || recSize%layout.BlockSize != 0 {
		return nil, errors.Newf("pager: record size %d is not a multiple of %d", recSize, layout.BlockSize)
	}
	recs := capBytes / recSize
	if recs < 1 {
		recs = 1
	}
	size := recs * recSize
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, ErrAlloc), "pager: map %d bytes", size)
	}
	if uintptr(unsafe.Pointer(&mem[0]))%layout.BlockSize != 0 {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(ErrAlloc, "pager: mapping is not block aligned")
	}
	return &BlockBuffer{w: w, mem: mem, recSize: recSize, cap: recs}, nil
}

// Append encodes rec into the next slot and flushes if the buffer is full.
func (b *BlockBuffer) Append(rec Block) error {
	if b.mem == nil {
		return ErrReleased
	}
	off := b.n * b.recSize
	if err := rec.MarshalBlock(b.mem[off : off+b.recSize]); err != nil {
		return err
	}
	b.n++
	if b.n == b.cap {
		return b.Flush()
	}
	return nil
}

// Flush writes the staged records. Anything other than a complete write is
// reported as ErrShortWrite; the buffer is not retried.
func (b *BlockBuffer) Flush() error {
	if b.mem == nil {
		return ErrReleased
	}
	if b.n == 0 {
		return nil
	}
	want := b.n * b.recSize
	n, err := b.w.Write(b.mem[:want])
	b.written += int64(n)
	if err != nil || n != want {
		if err == nil {
			err = io.ErrShortWrite
		}
		return errors.Wrapf(errors.Mark(err, ErrShortWrite), "pager: wrote %d of %d bytes", n, want)
	}
	b.n = 0
	b.flushes++
	return nil
}

// Release unmaps the arena. It is safe to call more than once.
func (b *BlockBuffer) Release() error {
	if b.mem == nil {
		return nil
	}
	mem := b.mem
	b.mem = nil
	if err := unix.Munmap(mem); err != nil {
		return errors.Wrap(err, "pager: unmap staging buffer")
	}
	return nil
}

// Len is the number of records currently staged.
func (b *BlockBuffer) Len() int { return b.n }

// Cap is the number of records per flush.
func (b *BlockBuffer) Cap() int { return b.cap }

// Flushes is the number of completed writes.
func (b *BlockBuffer) Flushes() int { return b.flushes }

// Written is the number of bytes accepted by the writer, including a failed
// partial write.
func (b *BlockBuffer) Written() int64 { return b.written }
