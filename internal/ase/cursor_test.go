package ase

import (
	"errors"
	"testing"
)

func TestCursorReads(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 3, 'f', 'o', 'o'})

	u8, err := c.Uint8()
	if err != nil || u8 != 0x01 {
		t.Fatalf("Uint8() = %v, %v, want 1", u8, err)
	}

	u16, err := c.Uint16()
	if err != nil || u16 != 0x0203 {
		t.Fatalf("Uint16() = 0x%x, %v, want 0x0203", u16, err)
	}

	u32, err := c.Uint32()
	if err != nil || u32 != 0x04050607 {
		t.Fatalf("Uint32() = 0x%x, %v, want 0x04050607", u32, err)
	}

	s, err := c.Text()
	if err != nil || s != "foo" {
		t.Fatalf("Text() = %q, %v, want foo", s, err)
	}

	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
	if _, err := c.Uint8(); !errors.Is(err, ErrTruncated) {
		t.Errorf("Uint8() at end error = %v, want ErrTruncated", err)
	}
}

func TestCursorSeek(t *testing.T) {
	c := NewCursor(make([]byte, 4))

	if err := c.Seek(4); err != nil {
		t.Errorf("Seek(end) error = %v", err)
	}
	if err := c.Seek(5); !errors.Is(err, ErrTruncated) {
		t.Errorf("Seek(5) error = %v, want ErrTruncated", err)
	}
	if err := c.Seek(-1); !errors.Is(err, ErrTruncated) {
		t.Errorf("Seek(-1) error = %v, want ErrTruncated", err)
	}
	if c.Offset() != 4 {
		t.Errorf("Offset() = %d, want 4 after failed seeks", c.Offset())
	}
}

func TestCursorTruncatedKeepsOffset(t *testing.T) {
	c := NewCursor([]byte{0x01})

	if _, err := c.Uint16(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("Uint16() error = %v, want ErrTruncated", err)
	}
	if c.Offset() != 0 {
		t.Errorf("Offset() = %d, want 0", c.Offset())
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("Test Server"), "Test Server"},
		{"utf8", []byte("Сервер"), "Сервер"},
		{"lone continuation", []byte{0x80}, "\uFFFD"},
		{"embedded invalid", []byte{'a', 'b', 0x80, 'c', 'd'}, "ab\uFFFDcd"},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.input); got != tt.want {
				t.Errorf("Text(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
