package pe

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cursor is a movable read position over a random-access byte source.
// All multi-byte reads are little-endian and fail with ErrTruncatedFile
// when fewer bytes than requested remain.
type Cursor struct {
	r    io.ReaderAt
	size int64
	pos  int64
}

// NewCursor creates a cursor at offset 0 over size bytes of r.
func NewCursor(r io.ReaderAt, size int64) *Cursor {
	return &Cursor{r: r, size: size}
}

// Pos returns the current absolute offset.
func (c *Cursor) Pos() int64 {
	return c.pos
}

// Size returns the length of the underlying source.
func (c *Cursor) Size() int64 {
	return c.size
}

// Seek moves the cursor to an absolute offset. Positions outside the
// source are accepted; the next read reports the truncation.
func (c *Cursor) Seek(offset int64) {
	c.pos = offset
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int64) {
	c.pos += n
}

// ReadBytes reads exactly n bytes into a newly allocated slice.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos < 0 || c.pos > c.size || int64(n) > c.size-c.pos {
		return nil, fmt.Errorf("在偏移 0x%X 处读取 %d 字节: %w", c.pos, n, ErrTruncatedFile)
	}

	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}

	read, err := c.r.ReadAt(buf, c.pos)
	if read < n {
		if err == nil || err == io.EOF {
			err = ErrTruncatedFile
		}
		return nil, fmt.Errorf("在偏移 0x%X 处读取 %d 字节: %w", c.pos, n, err)
	}

	c.pos += int64(n)
	return buf, nil
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadWord reads a 4-byte value for PE32 images and an 8-byte value for
// PE32+ images.
func (c *Cursor) ReadWord(kind ImageKind) (uint64, error) {
	if kind == PE32Plus {
		return c.ReadU64()
	}
	v, err := c.ReadU32()
	return uint64(v), err
}

// fieldReader decodes consecutive header fields and keeps the first error,
// so long fixed layouts read as a flat list of assignments.
type fieldReader struct {
	c   *Cursor
	err error
}

func (f *fieldReader) u8() uint8 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadU8()
	f.err = err
	return v
}

func (f *fieldReader) u16() uint16 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadU16()
	f.err = err
	return v
}

func (f *fieldReader) u32() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadU32()
	f.err = err
	return v
}

func (f *fieldReader) word(kind ImageKind) uint64 {
	if f.err != nil {
		return 0
	}
	v, err := f.c.ReadWord(kind)
	f.err = err
	return v
}
