// Package buffer implements the resizable byte buffer described in
// spec.md section 4.1: a front prepend area plus readable/writable
// regions, grounded on muduo's Buffer and the teacher's habit of keeping
// small, single-purpose value types (util/message.go, util/queue.go).
package buffer

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// CheapPrepend is the fixed-size header room reserved at the front of
// every Buffer so that a length/type prefix can be written in O(1)
// without shifting the readable bytes.
const CheapPrepend = 8

// InitialSize is the default capacity of a freshly constructed Buffer.
const InitialSize = 1024

// extraBufferSize is the size of the stack-local scratch buffer used by
// ReadFd to absorb a read larger than the buffer's current writable
// space, avoiding an unbounded per-fd allocation on a single burst.
const extraBufferSize = 65536

// Buffer is NOT safe for concurrent use; each TcpConnection owns its own
// input and output Buffer and only ever touches them from its owning
// loop's thread.
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

// New returns a Buffer with CheapPrepend bytes reserved up front.
func New() *Buffer {
	b := &Buffer{
		buf: make([]byte, InitialSize),
	}
	b.readerIndex = CheapPrepend
	b.writerIndex = CheapPrepend
	return b
}

func (b *Buffer) ReadableBytes() int    { return b.writerIndex - b.readerIndex }
func (b *Buffer) WritableBytes() int    { return len(b.buf) - b.writerIndex }
func (b *Buffer) PrependableBytes() int { return b.readerIndex }

// Peek returns the readable region without consuming it. The returned
// slice aliases the buffer and is only valid until the next mutation.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readerIndex:b.writerIndex]
}

// Retrieve consumes n readable bytes. When the buffer empties, both
// indices reset to the prepend head — the only shrink policy (section
// 4.1).
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.readerIndex += n
		return
	}
	b.RetrieveAll()
}

// RetrieveAll discards every readable byte.
func (b *Buffer) RetrieveAll() {
	b.readerIndex = CheapPrepend
	b.writerIndex = CheapPrepend
}

// RetrieveAsString consumes and returns n readable bytes as a string.
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.buf[b.readerIndex : b.readerIndex+n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString consumes and returns every readable byte.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies data into the writable region, growing the buffer if
// necessary.
func (b *Buffer) Append(data []byte) {
	b.ensureWritable(len(data))
	copy(b.buf[b.writerIndex:], data)
	b.writerIndex += len(data)
}

// ensureWritable grows the underlying array, or shifts the readable
// region left to reclaim prepend slack, so that at least n bytes are
// writable. Mirrors the growth policy in spec.md section 4.1: only
// reallocate exactly what is needed when slack can't cover it.
func (b *Buffer) ensureWritable(n int) {
	if b.WritableBytes() >= n {
		return
	}
	if b.WritableBytes()+b.PrependableBytes()-CheapPrepend >= n {
		// Slack in front + back covers it: shift readable bytes left.
		readable := b.ReadableBytes()
		copy(b.buf[CheapPrepend:], b.buf[b.readerIndex:b.writerIndex])
		b.readerIndex = CheapPrepend
		b.writerIndex = CheapPrepend + readable
		return
	}
	// Not enough slack anywhere: reallocate to exactly what's needed.
	needed := CheapPrepend + b.ReadableBytes() + n
	newBuf := make([]byte, needed)
	copy(newBuf[CheapPrepend:], b.buf[b.readerIndex:b.writerIndex])
	readable := b.ReadableBytes()
	b.buf = newBuf
	b.readerIndex = CheapPrepend
	b.writerIndex = CheapPrepend + readable
}

// Prepend writes data immediately before the readable region. Requires
// PrependableBytes() >= len(data); callers only ever prepend fixed-size
// headers sized well under CheapPrepend.
func (b *Buffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic("buffer: not enough prependable space")
	}
	b.readerIndex -= len(data)
	copy(b.buf[b.readerIndex:], data)
}

// FindCRLF returns the index (relative to the readable region) of the
// first "\r\n", or -1 if absent.
func (b *Buffer) FindCRLF() int {
	return b.FindCRLFFrom(0)
}

// FindCRLFFrom searches for "\r\n" starting at offset from within the
// readable region.
func (b *Buffer) FindCRLFFrom(from int) int {
	readable := b.Peek()
	if from > len(readable) {
		return -1
	}
	idx := bytes.Index(readable[from:], []byte("\r\n"))
	if idx < 0 {
		return -1
	}
	return idx + from
}

// ReadFd performs a scatter-read into the buffer's tail and a
// extraBufferSize stack spill, appending any overflow. This caps the
// read syscalls needed per readiness notification and lets a small
// default buffer absorb bursty reads (spec.md section 4.1).
func (b *Buffer) ReadFd(fd int) (int, error) {
	var extraBuf [extraBufferSize]byte

	writable := b.WritableBytes()
	iov := [][]byte{b.buf[b.writerIndex:len(b.buf)]}
	if writable < extraBufferSize {
		iov = append(iov, extraBuf[:])
	}

	n, err := unix.Readv(fd, iov)
	if n <= 0 {
		return n, err
	}

	if n <= writable {
		b.writerIndex += n
	} else {
		b.writerIndex = len(b.buf)
		b.Append(extraBuf[:n-writable])
	}
	return n, err
}

// AppendInt64/32/16 and PeekInt/ReadInt below implement muduo's
// Buffer::appendInt32 / peekInt32 / readInt32 family
// (original_source/muduo/net/Endian.h + Buffer.h), added per SPEC_FULL.md
// section 12: header fields are always written/read big-endian so a
// framing codec built on top never hits unaligned-access surprises.

func (b *Buffer) AppendInt64(x int64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(x))
	b.Append(tmp[:])
}

func (b *Buffer) AppendInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Append(tmp[:])
}

func (b *Buffer) AppendInt16(x int16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(x))
	b.Append(tmp[:])
}

func (b *Buffer) PeekInt32() int32 {
	return int32(binary.BigEndian.Uint32(b.Peek()[:4]))
}

func (b *Buffer) ReadInt32() int32 {
	v := b.PeekInt32()
	b.Retrieve(4)
	return v
}

func (b *Buffer) PrependInt32(x int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(x))
	b.Prepend(tmp[:])
}
