package ase

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/woozymasta/mtalist/internal/models"
)

// writer appends big-endian values to a byte slice.
type writer struct {
	buf []byte
}

func (w *writer) uint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) uint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) uint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *writer) text(s string) error {
	if len(s) > 0xFF {
		return fmt.Errorf("%w: %d bytes of text", ErrFieldTooLong, len(s))
	}
	w.uint8(uint8(len(s)))
	w.buf = append(w.buf, s...)

	return nil
}

// Encode builds a master list response carrying the fields selected by h.Flags.
// Count and Length of h are filled from the servers and the resulting body.
func Encode(h Header, servers []models.Server) ([]byte, error) {
	w := &writer{buf: make([]byte, HeaderSize, HeaderSize+len(servers)*64)}

	for i := range servers {
		record, err := encodeServer(h.Flags, &servers[i])
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if len(record)+2 > 0xFFFF {
			return nil, fmt.Errorf("record %d: %w: %d bytes", i, ErrFieldTooLong, len(record)+2)
		}
		w.uint16(uint16(len(record) + 2))
		w.buf = append(w.buf, record...)
	}

	h.Count = uint32(len(servers))
	h.Length = uint16(len(w.buf))
	binary.BigEndian.PutUint16(w.buf[0:], h.Length)
	binary.BigEndian.PutUint16(w.buf[2:], h.Version)
	binary.BigEndian.PutUint32(w.buf[4:], uint32(h.Flags))
	binary.BigEndian.PutUint32(w.buf[8:], h.Sequence)
	binary.BigEndian.PutUint32(w.buf[12:], h.Count)

	return w.buf, nil
}

// encodeServer returns one record without its entry length prefix.
func encodeServer(flags Flag, s *models.Server) ([]byte, error) {
	addr, err := netip.ParseAddr(s.IP)
	if err != nil || !addr.Is4() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s.IP)
	}

	ip := addr.As4()
	w := &writer{buf: []byte{ip[3], ip[2], ip[1], ip[0]}}
	w.uint16(s.Port)

	for _, f := range Fields {
		if !flags.Has(f.Flag) {
			continue
		}
		if err := f.write(w, s); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}

	return w.buf, nil
}
