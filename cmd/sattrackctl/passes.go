package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/riyagpt0251/SatTrackAI/internal/passes"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

func newPassesCmd(opts *options) *cobra.Command {
	var (
		obs     observerFlags
		hours   float64
		partial string
	)
	cmd := &cobra.Command{
		Use:   "passes <name>",
		Short: "Predict passes over an observer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !obs.set(cmd) {
				return errors.New("--lat and --lon are required")
			}
			if limit := tracking.DefaultConfig().MaxPassWindow.Hours(); hours <= 0 || hours > limit {
				return fmt.Errorf("--hours must be in (0, %g]", limit)
			}
			policy, err := passes.ParsePartialPolicy(partial)
			if err != nil {
				return err
			}
			o, err := obs.observer()
			if err != nil {
				return err
			}
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}

			start := svc.Now()
			end := start.Add(time.Duration(hours * float64(time.Hour)))
			report, err := svc.Passes(cmd.Context(), args[0], o, start, end, obs.minElevation, policy)
			if err != nil {
				return err
			}

			return opts.emit(cmd.OutOrStdout(), report, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "START\tEND\tMAX_EL\tAZ_RISE\tAZ_SET\tPARTIAL")
				for _, p := range report.Passes {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%s\t%s\t%t\n",
						p.Start.Format(timeLayout), p.End.Format(timeLayout), p.MaxElevation(),
						azimuth(p.Rise), azimuth(p.Set), p.Partial)
				}
				fmt.Fprintf(tw, "\n%d passes of %s above %.1f° in %.0f h\n",
					len(report.Passes), report.Name, report.MinElevation, hours)
			})
		},
	}
	obs.register(cmd)
	cmd.Flags().Float64Var(&hours, "hours", 24, "search window length")
	cmd.Flags().StringVar(&partial, "partial", passes.IncludePartial.String(), "passes cut by the window: include or drop")
	return cmd
}

func azimuth(e *passes.Event) string {
	if e == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", e.Azimuth)
}
