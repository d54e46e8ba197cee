package asm

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// Buffer is a bounded byte sink for native CPU instructions.
//
// The backing slice is provided by the caller (usually a memory mapped
// RWX region from the platform package) and never grows: Buffer is the
// sole bounds authority for everything layered above it, and a write
// past the end is a bug in the emitter, not a recoverable condition.
type Buffer struct {
	code []byte
	size int
}

// NewBuffer constructs a Buffer writing into code, starting at offset 0.
// len(code) is the capacity.
func NewBuffer(code []byte) *Buffer {
	if len(code) == 0 {
		panic("BUG: NewBuffer with empty code region")
	}
	return &Buffer{code: code}
}

// Cap returns the total capacity of the buffer in bytes.
func (buf *Buffer) Cap() int {
	return len(buf.code)
}

// Cursor returns the current write offset.
func (buf *Buffer) Cursor() int {
	return buf.size
}

// Reset rewinds the write cursor to zero. The memory is not zeroed.
func (buf *Buffer) Reset() {
	buf.size = 0
}

// Truncate rolls the write cursor back to offset n. Used by the peephole
// rewriter to drop trailing instructions before re-emitting.
func (buf *Buffer) Truncate(n int) {
	if n < 0 || n > buf.size {
		panic(fmt.Sprintf("BUG: truncate to %d outside emitted range [0, %d]", n, buf.size))
	}
	buf.size = n
}

// Bytes returns the emitted prefix of the code region.
func (buf *Buffer) Bytes() []byte {
	return buf.code[:buf.size:buf.size]
}

// Addr returns the address of the beginning of the code region.
func (buf *Buffer) Addr() uintptr {
	return uintptr(unsafe.Pointer(&buf.code[0]))
}

func (buf *Buffer) ensure(n int) {
	if len(buf.code)-buf.size < n {
		panic(fmt.Sprintf("BUG: code buffer capacity exceeded (capacity=%d, cursor=%d, write=%d)",
			len(buf.code), buf.size, n))
	}
}

// WriteByte appends a single byte.
func (buf *Buffer) WriteByte(b byte) {
	buf.ensure(1)
	buf.code[buf.size] = b
	buf.size++
}

// WriteUint16 appends v in little endian.
func (buf *Buffer) WriteUint16(v uint16) {
	buf.ensure(2)
	binary.LittleEndian.PutUint16(buf.code[buf.size:], v)
	buf.size += 2
}

// WriteUint32 appends v in little endian.
func (buf *Buffer) WriteUint32(v uint32) {
	buf.ensure(4)
	binary.LittleEndian.PutUint32(buf.code[buf.size:], v)
	buf.size += 4
}

// Write appends p verbatim.
func (buf *Buffer) Write(p []byte) {
	buf.ensure(len(p))
	copy(buf.code[buf.size:], p)
	buf.size += len(p)
}

// Byte returns the emitted byte at offset i.
func (buf *Buffer) Byte(i int) byte {
	return buf.code[i]
}

// Uint32At reads the emitted little-endian uint32 at offset i.
func (buf *Buffer) Uint32At(i int) uint32 {
	return binary.LittleEndian.Uint32(buf.code[i : i+4])
}

// PutUint32 overwrites the 4 bytes at offset i, which must already have
// been emitted. Used by SetTarget and the relocator to patch
// displacement fields in place.
func (buf *Buffer) PutUint32(i int, v uint32) {
	if i < 0 || i+4 > buf.size {
		panic(fmt.Sprintf("BUG: patch at %d outside emitted range [0, %d]", i, buf.size))
	}
	binary.LittleEndian.PutUint32(buf.code[i:], v)
}

// PutByte overwrites the single byte at offset i, which must already
// have been emitted.
func (buf *Buffer) PutByte(i int, v byte) {
	if i < 0 || i >= buf.size {
		panic(fmt.Sprintf("BUG: patch at %d outside emitted range [0, %d]", i, buf.size))
	}
	buf.code[i] = v
}
