// Package game queries a single MTA server directly over its ASE query port.
//
// A query opens (and drops) a TCP connection to the server's probe port to check that
// the host is alive, then sends the one byte request 's' to UDP port game+offset.
// The reply is padded with NUL bytes; once they are removed it holds an 8 byte
// preamble and eight fields of the form u8 length+1 | bytes.
package game

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/woozymasta/mtalist/internal/ase"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/models"
)

const (
	// RequestToken is the single byte sent to the query port.
	RequestToken byte = 0x73

	// PreambleSize is the number of leading bytes of a reply that carry no fields.
	PreambleSize = 8

	fieldCount = 8
)

var (
	// ErrInvalidAddress is returned for addresses that can not be queried.
	ErrInvalidAddress = errors.New("game: invalid server address")

	// ErrMalformedReply is returned when the reply does not hold all eight fields.
	ErrMalformedReply = errors.New("game: malformed query reply")
)

// QueryServer probes the server and requests its live info.
// Any failure yields an error and no info; the caller decides whether to retry.
func QueryServer(ctx context.Context, ip string, port uint16, opts config.Query) (*models.LiveInfo, error) {
	probe, query, err := endpoints(ip, port, opts)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: opts.Timeout}

	tcp, err := dialer.DialContext(ctx, "tcp", probe.String())
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", probe, err)
	}
	_ = tcp.Close()

	reply, err := exchange(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	info, err := ParseReply(reply)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", query, err)
	}
	info.IP = ip

	return info, nil
}

// endpoints derives the TCP probe and UDP query addresses of a server.
func endpoints(ip string, port uint16, opts config.Query) (probe, query netip.AddrPort, err error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return probe, query, fmt.Errorf("%w: %q", ErrInvalidAddress, ip)
	}

	queryPort := uint32(port) + uint32(opts.PortOffset)
	if queryPort > 0xFFFF {
		return probe, query, fmt.Errorf("%w: query port %d out of range", ErrInvalidAddress, queryPort)
	}

	return netip.AddrPortFrom(addr, opts.ProbePort), netip.AddrPortFrom(addr, uint16(queryPort)), nil
}

// exchange sends the request token over a fresh UDP socket and returns the reply without NUL bytes.
func exchange(ctx context.Context, addr netip.AddrPort, opts config.Query) ([]byte, error) {
	conn, err := net.DialUDP("udp", nil, net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	// unblock the read when the caller gives up
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if _, err := conn.Write([]byte{RequestToken}); err != nil {
		return nil, fmt.Errorf("send %s: %w", addr, err)
	}

	buf := make([]byte, opts.BufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("receive %s: %w", addr, err)
	}

	return stripZeros(buf[:n]), nil
}

// stripZeros removes every NUL byte in place.
func stripZeros(b []byte) []byte {
	out := b[:0]
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}

	return out
}

// ParseReply decodes a reply that already had its NUL bytes removed.
func ParseReply(reply []byte) (*models.LiveInfo, error) {
	if len(reply) < PreambleSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedReply, len(reply))
	}

	var fields [fieldCount]string
	c := ase.NewCursor(reply[PreambleSize:])

	for i := range fields {
		length, err := c.Uint8()
		if err != nil {
			return nil, fmt.Errorf("%w: field %d missing", ErrMalformedReply, i)
		}
		if length == 0 {
			return nil, fmt.Errorf("%w: field %d has zero length", ErrMalformedReply, i)
		}

		b, err := c.Bytes(int(length) - 1)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d: %w", ErrMalformedReply, i, err)
		}
		fields[i] = ase.Text(b)
	}

	return &models.LiveInfo{
		Port:       fields[0],
		Name:       fields[1],
		GameMode:   fields[2],
		Map:        fields[3],
		Version:    fields[4],
		Passworded: fields[5],
		Players:    fields[6],
		MaxPlayers: fields[7],
	}, nil
}

// Key identifies a server for memoization of query results.
func Key(ip string, port uint16) string {
	return net.JoinHostPort(ip, strconv.Itoa(int(port)))
}
