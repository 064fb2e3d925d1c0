// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/vars"
)

// Refresh strategies of the master list cache.
const (
	StrategyPeriodic    = "periodic"
	StrategyConditional = "conditional"
	StrategyDebounced   = "debounced"
)

// ProbeAll is the optional value of --probe-run meaning "every server of the list".
const ProbeAll = "all"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"MTALIST"`
	List      List          `group:"Master List Options" namespace:"list" env-namespace:"MTALIST_LIST"`
	Query     Query         `group:"Server Query Options" namespace:"query" env-namespace:"MTALIST_QUERY"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"MTALIST_RATE_LIMIT"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"MTALIST_GEOIP"`
	Probe     Probe         `group:"Probe Options" namespace:"probe" env-namespace:"MTALIST_PROBE"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"MTALIST_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address        string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AllowedOrigins []string `short:"o" long:"allowed-origin" env:"ALLOWED_ORIGINS" description:"CORS allowed origins, * for any" default:"http://localhost:8080" env-delim:","`
	TrustProxy     bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// List holds master list fetching and caching configuration.
type List struct {
	// betteralign:ignore

	URL       string        `short:"u" long:"url" env:"URL" description:"ASE master list URL" default:"https://master.multitheftauto.com/ase/mta/"`
	Strategy  string        `short:"s" long:"strategy" env:"STRATEGY" description:"Cache refresh strategy" choice:"periodic" choice:"conditional" choice:"debounced" default:"periodic"`
	Interval  time.Duration `long:"interval" env:"INTERVAL" description:"Refresh interval for periodic and conditional strategies" default:"30s"`
	Cooldown  time.Duration `long:"cooldown" env:"COOLDOWN" description:"Minimum time between refreshes for the debounced strategy" default:"10s"`
	Timeout   time.Duration `long:"timeout" env:"TIMEOUT" description:"HTTP timeout for master list requests" default:"15s"`
	UserAgent string        `long:"user-agent" env:"USER_AGENT" description:"User-Agent sent to the master list" default:"mtalist"`
	FakeCount int           `long:"dev-fake" hidden:"true"`
}

// Query holds live server query configuration.
type Query struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Probe and UDP read/write timeout" default:"1s"`
	ProbePort  uint16        `long:"probe-port" env:"PROBE_PORT" description:"TCP port used for the reachability probe" default:"80"`
	PortOffset uint16        `long:"port-offset" env:"PORT_OFFSET" description:"Offset from the game port to the query port" default:"123"`
	BufferSize int           `long:"buffer-size" env:"BUFFER_SIZE" description:"Response buffer size" default:"102400"`
	CacheTTL   time.Duration `long:"cache-ttl" env:"CACHE_TTL" description:"How long a live query result is reused, 0 disables" default:"5s"`
	CacheSize  int           `long:"cache-size" env:"CACHE_SIZE" description:"Maximum number of memoized live query results" default:"1024"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	Count  int           `long:"count" env:"COUNT" description:"Live query requests allowed per IP within the window" default:"30"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Live query rate limit window duration" default:"1m"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup" default:"mtalist.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// Probe holds configuration of the one-shot probe command.
type Probe struct {
	// betteralign:ignore

	Run     string `short:"p" long:"run" description:"Fetch the list, query servers live, print a table and exit. Optional arg: max servers." optional:"true" optional-value:"all"`
	Workers int    `long:"workers" env:"WORKERS" description:"Concurrent live queries" default:"32"`
}

// Enabled reports whether the probe command was requested.
func (p Probe) Enabled() bool {
	return p.Run != ""
}

// Limit returns the maximum number of servers to probe, 0 meaning all of them.
func (p Probe) Limit() (int, error) {
	if p.Run == "" || p.Run == ProbeAll {
		return 0, nil
	}

	n, err := strconv.Atoi(p.Run)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("flag `--probe-run' expects a positive number or %q, got %q", ProbeAll, p.Run)
	}

	return n, nil
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}

// ParseArgs parses the given arguments and environment without exiting the process.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that the flag parser can not express.
func (c *Config) Validate() error {
	switch {
	case c.List.URL == "" && c.List.FakeCount == 0:
		return fmt.Errorf("flag `--list-url' must not be empty")
	case c.List.Strategy != StrategyDebounced && c.List.Interval <= 0:
		return fmt.Errorf("flag `--list-interval' must be positive, got %s", c.List.Interval)
	case c.List.Strategy == StrategyDebounced && c.List.Cooldown <= 0:
		return fmt.Errorf("flag `--list-cooldown' must be positive, got %s", c.List.Cooldown)
	case c.Query.Timeout <= 0:
		return fmt.Errorf("flag `--query-timeout' must be positive, got %s", c.Query.Timeout)
	case c.Query.BufferSize < 16:
		return fmt.Errorf("flag `--query-buffer-size' is too small: %d", c.Query.BufferSize)
	case c.Probe.Workers < 1:
		return fmt.Errorf("flag `--probe-workers' must be at least 1, got %d", c.Probe.Workers)
	case c.GeoIP.Path != "" && c.GeoIP.Interval <= 0:
		return fmt.Errorf("flag `--geoip-interval' must be positive, got %s", c.GeoIP.Interval)
	case c.RateLimit.Count < 1 || c.RateLimit.Window <= 0:
		return fmt.Errorf("rate limit must allow at least one request per positive window")
	}

	_, err := c.Probe.Limit()
	return err
}
