// Package probe live-queries servers from a master list snapshot in parallel and prints the results.
package probe

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/woozymasta/mtalist/internal/config"
	"github.com/woozymasta/mtalist/internal/game"
	"github.com/woozymasta/mtalist/internal/logger"
	"github.com/woozymasta/mtalist/internal/models"
)

// Result is the outcome of one live query.
type Result struct {
	Info   *models.LiveInfo
	Err    error
	Server models.Server
	Took   time.Duration
}

type queryFunc func(ctx context.Context, ip string, port uint16, opts config.Query) (*models.LiveInfo, error)

// Run queries up to limit servers (0 for all) with workers goroutines.
// Results keep the order of servers.
func Run(ctx context.Context, servers []models.Server, limit, workers int, opts config.Query) []Result {
	return run(ctx, servers, limit, workers, opts, game.QueryServer)
}

func run(ctx context.Context, servers []models.Server, limit, workers int, opts config.Query, query queryFunc) []Result {
	if limit > 0 && limit < len(servers) {
		servers = servers[:limit]
	}
	if workers < 1 {
		workers = 1
	}

	log := logger.Component("probe")
	log.Info().Int("count", len(servers)).Int("workers", workers).Msg("Starting live queries")

	results := make([]Result, len(servers))
	jobs := make(chan int, len(servers))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = queryOne(ctx, log, servers[idx], opts, query)
			}
		}()
	}

	// Send jobs
	for i := range servers {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	failed := 0
	for i := range results {
		if results[i].Err != nil {
			failed++
		}
	}
	log.Info().Int("ok", len(results)-failed).Int("failed", failed).Msg("Live queries finished")

	return results
}

func queryOne(ctx context.Context, log zerolog.Logger, srv models.Server, opts config.Query, query queryFunc) Result {
	res := Result{Server: srv}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	res.Info, res.Err = query(ctx, srv.IP, srv.Port, opts)
	res.Took = time.Since(start)

	if res.Err != nil {
		log.Debug().
			Err(res.Err).
			Str("ip", srv.IP).
			Uint16("port", srv.Port).
			Msg("Server unreachable")
	}

	return res
}

// Print renders results as a table comparing listed and live player counts.
func Print(w io.Writer, results []Result) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Address", "Name", "Listed", "Live", "Map", "Mode", "Version", "Time"})
	tw.SetBorder(false)
	tw.SetAutoWrapText(false)

	ok := 0
	for _, r := range results {
		addr := game.Key(r.Server.IP, r.Server.Port)
		listed := fmt.Sprintf("%d/%d", r.Server.Players, r.Server.MaxPlayers)

		if r.Err != nil {
			tw.Append([]string{addr, r.Server.Name, listed, "-", r.Server.Map, r.Server.GameMode, "-", "error: " + r.Err.Error()})
			continue
		}
		ok++

		tw.Append([]string{
			addr,
			r.Info.Name,
			listed,
			r.Info.Players + "/" + r.Info.MaxPlayers,
			r.Info.Map,
			r.Info.GameMode,
			r.Info.Version,
			r.Took.Round(time.Millisecond).String(),
		})
	}

	tw.SetFooter([]string{"", "", "", strconv.Itoa(ok) + "/" + strconv.Itoa(len(results)), "", "", "", ""})
	tw.Render()
}
