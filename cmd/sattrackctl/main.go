// Command sattrackctl answers tracking queries offline from a local TLE file.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/riyagpt0251/SatTrackAI/internal/clock"
	"github.com/riyagpt0251/SatTrackAI/internal/tle"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

// options are the flags shared by every subcommand.
type options struct {
	tleFile string
	strict  bool
	json    bool
	at      string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "sattrackctl",
		Short: "Offline satellite tracking queries",
		Long: `sattrackctl reads a TLE file and prints catalog contents, positions,
ground tracks or pass predictions without running the service.

Examples:
  sattrackctl -f stations.txt catalog
  sattrackctl -f stations.txt position "ISS (ZARYA)"
  sattrackctl -f stations.txt track "ISS (ZARYA)" --samples 10 --step 1m
  sattrackctl -f stations.txt passes "ISS (ZARYA)" --lat 40.7 --lon -74 --hours 48`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.tleFile, "tle", "f", "", "TLE file to read, - for stdin")
	pf.BoolVar(&opts.strict, "strict", false, "fail on the first malformed entry")
	pf.BoolVar(&opts.json, "json", false, "print JSON instead of a table")
	pf.StringVar(&opts.at, "at", "", "reference time, RFC 3339 (default now)")
	root.MarkPersistentFlagRequired("tle")

	root.AddCommand(
		newCatalogCmd(opts),
		newPositionCmd(opts),
		newTrackCmd(opts),
		newPassesCmd(opts),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sattrackctl: %v\n", err)
		os.Exit(1)
	}
}

// service loads the TLE file into a fresh store and wraps it.
func (o *options) service(cmd *cobra.Command) (*tracking.Service, error) {
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	var (
		r         io.Reader
		fetchedAt time.Time
	)
	if o.tleFile == "-" {
		r = cmd.InOrStdin()
		fetchedAt = time.Now()
	} else {
		f, err := os.Open(o.tleFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if st, err := f.Stat(); err == nil {
			fetchedAt = st.ModTime()
		}
		r = f
	}

	mode := tle.SkipInvalid
	if o.strict {
		mode = tle.Strict
	}
	cat, err := tle.ParseMode(r, mode, logger)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", o.tleFile, err)
	}
	if cat.Len() == 0 {
		return nil, fmt.Errorf("%s: %w", o.tleFile, tle.ErrNoEntries)
	}

	store := tle.NewStore()
	store.Set(&tle.Dataset{Source: o.tleFile, FetchedAt: fetchedAt, Catalog: cat})

	clk := clock.Clock(clock.Real{})
	if o.at != "" {
		t, err := time.Parse(time.RFC3339, o.at)
		if err != nil {
			return nil, fmt.Errorf("invalid --at: %w", err)
		}
		clk = clock.NewFixed(t)
	}
	return tracking.New(store, clk, tracking.DefaultConfig(), logger), nil
}

// emit prints v as indented JSON or hands a tabwriter to table.
func (o *options) emit(w io.Writer, v any, table func(tw *tabwriter.Writer)) error {
	if o.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

const timeLayout = "2006-01-02 15:04:05Z07:00"
