package game

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/d4l3k/messagediff"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/models"
)

// buildReply encodes fields the way a server does, with NUL padding sprinkled in.
func buildReply(fields ...string) []byte {
	reply := []byte("EYE1\x00\x00ABCD")
	for _, f := range fields {
		reply = append(reply, byte(len(f)+1), 0)
		reply = append(reply, f...)
	}

	return append(reply, 0, 0, 0, 0)
}

// startServer runs a TCP probe listener and a UDP responder on loopback.
// It returns query options and the game port whose query port is the responder.
func startServer(t *testing.T, reply []byte) (config.Query, uint16) {
	t.Helper()

	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen(tcp) error = %v", err)
	}
	t.Cleanup(func() { _ = tcp.Close() })

	go func() {
		for {
			conn, err := tcp.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket(udp) error = %v", err)
	}
	t.Cleanup(func() { _ = udp.Close() })

	go func() {
		buf := make([]byte, 16)
		for {
			n, addr, err := udp.ReadFrom(buf)
			if err != nil {
				return
			}
			if n == 1 && buf[0] == RequestToken && reply != nil {
				_, _ = udp.WriteTo(reply, addr)
			}
		}
	}()

	opts := config.Query{
		Timeout:    500 * time.Millisecond,
		ProbePort:  uint16(tcp.Addr().(*net.TCPAddr).Port),
		PortOffset: 123,
		BufferSize: 100 * 1024,
	}

	return opts, uint16(udp.LocalAddr().(*net.UDPAddr).Port) - opts.PortOffset
}

func closedPort(t *testing.T) uint16 {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen(tcp) error = %v", err)
	}
	port := uint16(l.Addr().(*net.TCPAddr).Port)
	_ = l.Close()

	return port
}

func TestQueryServer(t *testing.T) {
	opts, port := startServer(t, buildReply("22003", "Test Server", "race", "San Andreas", "1.6", "0", "4", "32"))

	info, err := QueryServer(context.Background(), "127.0.0.1", port, opts)
	if err != nil {
		t.Fatalf("QueryServer() error = %v", err)
	}

	want := &models.LiveInfo{
		IP:         "127.0.0.1",
		Port:       "22003",
		Name:       "Test Server",
		GameMode:   "race",
		Map:        "San Andreas",
		Version:    "1.6",
		Passworded: "0",
		Players:    "4",
		MaxPlayers: "32",
	}
	if diff, equal := messagediff.PrettyDiff(want, info); !equal {
		t.Errorf("QueryServer() diff:\n%s", diff)
	}
}

func TestQueryServerProbeRefused(t *testing.T) {
	opts, port := startServer(t, buildReply("1", "2", "3", "4", "5", "6", "7", "8"))
	opts.ProbePort = closedPort(t)

	if info, err := QueryServer(context.Background(), "127.0.0.1", port, opts); err == nil {
		t.Errorf("QueryServer() = %+v, want probe error", info)
	}
}

func TestQueryServerNoReply(t *testing.T) {
	opts, port := startServer(t, nil)
	opts.Timeout = 200 * time.Millisecond

	start := time.Now()
	if info, err := QueryServer(context.Background(), "127.0.0.1", port, opts); err == nil {
		t.Errorf("QueryServer() = %+v, want timeout", info)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("QueryServer() took %s, timeout not honored", elapsed)
	}
}

func TestQueryServerContextCanceled(t *testing.T) {
	opts, port := startServer(t, nil)
	opts.Timeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := QueryServer(ctx, "127.0.0.1", port, opts); err == nil {
		t.Error("QueryServer() error = nil, want deadline error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("QueryServer() took %s after context deadline", elapsed)
	}
}

func TestQueryServerConcurrent(t *testing.T) {
	good, goodPort := startServer(t, buildReply("22003", "ok", "m", "map", "1.6", "0", "1", "2"))
	silent, silentPort := startServer(t, nil)
	silent.Timeout = 300 * time.Millisecond

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := QueryServer(context.Background(), "127.0.0.1", goodPort, good)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			if _, err := QueryServer(context.Background(), "127.0.0.1", silentPort, silent); err == nil {
				errs <- errors.New("silent server answered")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestQueryServerInvalidAddress(t *testing.T) {
	opts := config.Query{Timeout: time.Second, ProbePort: 80, PortOffset: 123, BufferSize: 1024}

	tests := []struct {
		name string
		ip   string
		port uint16
	}{
		{"hostname", "example.com", 22003},
		{"ipv6", "::1", 22003},
		{"port overflow", "127.0.0.1", 65500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := QueryServer(context.Background(), tt.ip, tt.port, opts)
			if !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("QueryServer() error = %v, want ErrInvalidAddress", err)
			}
		})
	}
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		reply   []byte
		want    *models.LiveInfo
		wantErr bool
	}{
		{
			name:  "full reply",
			reply: stripZeros(buildReply("22003", "name", "mode", "map", "1.5", "1", "10", "20")),
			want: &models.LiveInfo{
				Port: "22003", Name: "name", GameMode: "mode", Map: "map",
				Version: "1.5", Passworded: "1", Players: "10", MaxPlayers: "20",
			},
		},
		{
			name:  "invalid utf8 is replaced",
			reply: append([]byte("EYE1ABCD"), 2, '1', 2, 0x80, 2, 'm', 2, 'x', 2, 'v', 2, '0', 2, '0', 2, '0'),
			want: &models.LiveInfo{
				Port: "1", Name: "\uFFFD", GameMode: "m", Map: "x",
				Version: "v", Passworded: "0", Players: "0", MaxPlayers: "0",
			},
		},
		{
			name:    "shorter than preamble",
			reply:   []byte("EYE1"),
			wantErr: true,
		},
		{
			name:    "missing fields",
			reply:   stripZeros(buildReply("22003", "name")),
			wantErr: true,
		},
		{
			name:    "field overruns",
			reply:   append([]byte("EYE1ABCD"), 200, 'x'),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.reply)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReply) {
					t.Errorf("ParseReply() error = %v, want ErrMalformedReply", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReply() error = %v", err)
			}
			if diff, equal := messagediff.PrettyDiff(tt.want, got); !equal {
				t.Errorf("ParseReply() diff:\n%s", diff)
			}
		})
	}
}

func TestStripZeros(t *testing.T) {
	got := stripZeros([]byte{0, 'a', 0, 0, 'b', 0})
	if string(got) != "ab" {
		t.Errorf("stripZeros() = %q, want %q", got, "ab")
	}
}
