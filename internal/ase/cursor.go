package ase

import (
	"encoding/binary"
	"fmt"
)

// Cursor is a sequential big-endian reader over an immutable byte buffer.
// Every read checks bounds and fails with ErrTruncated instead of panicking.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Seek moves the cursor to an absolute offset. The end of the buffer is a valid position.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("%w: seek to %d outside buffer of %d bytes", ErrTruncated, off, len(c.buf))
	}
	c.off = off

	return nil
}

// Bytes returns the next n bytes. The slice aliases the underlying buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, c.off, c.Remaining())
	}
	b := c.buf[c.off : c.off+n]
	c.off += n

	return b, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	b, err := c.Bytes(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// Uint16 reads a big-endian 16-bit value.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(b), nil
}

// Uint32 reads a big-endian 32-bit value.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Bytes(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b), nil
}

// Text reads a text field prefixed by a one byte length.
// Invalid UTF-8 never fails the read, see the package level Text.
func (c *Cursor) Text() (string, error) {
	n, err := c.Uint8()
	if err != nil {
		return "", err
	}

	b, err := c.Bytes(int(n))
	if err != nil {
		return "", err
	}

	return Text(b), nil
}
