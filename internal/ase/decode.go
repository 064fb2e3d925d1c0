// Package ase reads and writes the binary ASE master list served by the server directory.
//
// A response is a fixed header followed by count records:
//
//	u16 length | u16 version | u32 flags | u32 sequence | u32 count | record*
//	record: u16 entry_length | u8[4] address (reversed) | u16 port | flagged fields
//
// All integers are big-endian. The flags of the header select which optional fields
// every record carries; see Fields for their order.
package ase

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/woozymasta/mtalist/internal/models"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 16

var (
	// ErrTruncated is returned when a field runs past the end of the body.
	ErrTruncated = errors.New("ase: truncated response")

	// ErrEntryLength is returned for a record whose declared length cannot cover itself.
	ErrEntryLength = errors.New("ase: invalid entry length")

	// ErrFieldTooLong is returned by Encode for values that do not fit their length prefix.
	ErrFieldTooLong = errors.New("ase: field too long")

	// ErrInvalidAddress is returned by Encode for addresses that are not IPv4.
	ErrInvalidAddress = errors.New("ase: invalid IPv4 address")
)

// Header precedes the record list.
type Header struct {
	Length   uint16
	Version  uint16
	Flags    Flag
	Sequence uint32
	Count    uint32
}

// ReadHeader reads the response header at the cursor position.
func ReadHeader(c *Cursor) (Header, error) {
	var (
		h     Header
		err   error
		flags uint32
	)

	if h.Length, err = c.Uint16(); err != nil {
		return h, err
	}
	if h.Version, err = c.Uint16(); err != nil {
		return h, err
	}
	if flags, err = c.Uint32(); err != nil {
		return h, err
	}
	h.Flags = Flag(flags)
	if h.Sequence, err = c.Uint32(); err != nil {
		return h, err
	}
	if h.Count, err = c.Uint32(); err != nil {
		return h, err
	}

	return h, nil
}

// Decode parses a complete master list response.
// Any malformed record fails the whole response; no partial list is returned.
func Decode(data []byte) ([]models.Server, error) {
	_, servers, err := DecodeWithHeader(data)
	return servers, err
}

// DecodeWithHeader is Decode that also returns the parsed header.
func DecodeWithHeader(data []byte) (Header, []models.Server, error) {
	c := NewCursor(data)

	h, err := ReadHeader(c)
	if err != nil {
		return h, nil, fmt.Errorf("header: %w", err)
	}

	// count comes from the wire, do not trust it for allocation
	servers := make([]models.Server, 0, min(int64(h.Count), int64(c.Remaining()/8)))
	for i := uint32(0); i < h.Count; i++ {
		s, err := decodeServer(c, h.Flags)
		if err != nil {
			return h, nil, fmt.Errorf("record %d: %w", i, err)
		}
		servers = append(servers, s)
	}

	return h, servers, nil
}

// decodeServer reads one record and leaves the cursor at the offset declared by
// its entry length, whatever the flagged fields actually consumed.
func decodeServer(c *Cursor, flags Flag) (models.Server, error) {
	var s models.Server

	start := c.Offset()
	entryLength, err := c.Uint16()
	if err != nil {
		return s, err
	}
	if entryLength < 2 {
		return s, fmt.Errorf("%w: %d at offset %d", ErrEntryLength, entryLength, start)
	}
	next := start + int(entryLength)

	addr, err := c.Bytes(4)
	if err != nil {
		return s, err
	}
	s.IP = netip.AddrFrom4([4]byte{addr[3], addr[2], addr[1], addr[0]}).String()

	if s.Port, err = c.Uint16(); err != nil {
		return s, err
	}

	for _, f := range Fields {
		if !flags.Has(f.Flag) {
			continue
		}
		if err := f.read(c, &s); err != nil {
			return s, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}

	if err := c.Seek(next); err != nil {
		return s, err
	}

	return s, nil
}
