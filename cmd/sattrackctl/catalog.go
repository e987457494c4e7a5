package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

func newCatalogCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog [name]",
		Short: "List the satellites in the TLE file, or show one element set",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				sum, err := svc.Elements(args[0])
				if err != nil {
					return err
				}
				return opts.emit(out, sum, func(tw *tabwriter.Writer) {
					writeSummary(tw, sum)
				})
			}

			list, err := svc.List()
			if err != nil {
				return err
			}
			meta, err := svc.Metadata()
			if err != nil {
				return err
			}
			body := struct {
				Metadata   tracking.Metadata  `json:"metadata"`
				Satellites []tracking.Listing `json:"satellites"`
			}{meta, list}
			return opts.emit(out, body, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "NAME\tNORAD\tEPOCH")
				for _, l := range list {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", l.Name, l.CatalogNumber, l.Epoch.Format(timeLayout))
				}
				fmt.Fprintf(tw, "\n%d satellites, %d duplicates replaced, %d rejected\n",
					meta.Count, meta.Duplicates, meta.Rejected)
			})
		},
	}
}

func writeSummary(tw *tabwriter.Writer, s tracking.Summary) {
	rows := []struct {
		k string
		v any
	}{
		{"name", s.Name},
		{"norad", s.CatalogNumber},
		{"designator", s.IntlDesignator},
		{"epoch", s.Epoch.Format(timeLayout)},
		{"model", s.Model},
		{"inclination", fmt.Sprintf("%.4f°", s.Inclination)},
		{"raan", fmt.Sprintf("%.4f°", s.RAAN)},
		{"eccentricity", fmt.Sprintf("%.7f", s.Eccentricity)},
		{"arg perigee", fmt.Sprintf("%.4f°", s.ArgPerigee)},
		{"mean anomaly", fmt.Sprintf("%.4f°", s.MeanAnomaly)},
		{"mean motion", fmt.Sprintf("%.8f rev/day", s.MeanMotion)},
		{"period", fmt.Sprintf("%.2f min", s.PeriodMinutes)},
		{"bstar", s.BStar},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%v\n", r.k, r.v)
	}
}
