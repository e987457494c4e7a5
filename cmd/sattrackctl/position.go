package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
	"github.com/riyagpt0251/SatTrackAI/internal/transform"
)

// observerFlags are the optional ground station flags.
type observerFlags struct {
	lat, lon, elevation float64
	minElevation        float64
}

func (f *observerFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "observer latitude, degrees")
	cmd.Flags().Float64Var(&f.lon, "lon", 0, "observer longitude, degrees")
	cmd.Flags().Float64Var(&f.elevation, "elevation", 0, "observer elevation, metres")
	cmd.Flags().Float64Var(&f.minElevation, "min-elevation", transform.DefaultMinElevation, "visibility threshold, degrees")
}

func (f *observerFlags) set(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon")
}

func (f *observerFlags) observer() (transform.Observer, error) {
	return transform.NewObserver(f.lat, f.lon, f.elevation)
}

func newPositionCmd(opts *options) *cobra.Command {
	var obs observerFlags
	cmd := &cobra.Command{
		Use:   "position <name>",
		Short: "Print the sub-satellite point, and look angles when --lat/--lon are given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			now := svc.Now()
			pos, err := svc.Position(args[0], now)
			if err != nil {
				return err
			}

			body := struct {
				tracking.Position
				Look *tracking.Look `json:"look,omitempty"`
			}{Position: pos}
			if obs.set(cmd) {
				o, err := obs.observer()
				if err != nil {
					return err
				}
				look, err := svc.Look(args[0], o, now, obs.minElevation)
				if err != nil {
					return err
				}
				body.Look = &look
			}

			return opts.emit(cmd.OutOrStdout(), body, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "name\t%s (%d)\n", pos.Name, pos.CatalogNumber)
				fmt.Fprintf(tw, "time\t%s\n", pos.Time.Format(timeLayout))
				fmt.Fprintf(tw, "latitude\t%.4f°\n", pos.Latitude)
				fmt.Fprintf(tw, "longitude\t%.4f°\n", pos.Longitude)
				fmt.Fprintf(tw, "altitude\t%.1f km\n", pos.Altitude)
				fmt.Fprintf(tw, "speed\t%.3f km/s\n", pos.Speed)
				if l := body.Look; l != nil {
					fmt.Fprintf(tw, "azimuth\t%.2f°\n", l.Azimuth)
					fmt.Fprintf(tw, "elevation\t%.2f°\n", l.Elevation)
					fmt.Fprintf(tw, "range\t%.1f km\n", l.Range)
					fmt.Fprintf(tw, "visible\t%t\n", l.Visible)
				}
			})
		},
	}
	obs.register(cmd)
	return cmd
}

func newTrackCmd(opts *options) *cobra.Command {
	var (
		samples int
		step    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "track <name>",
		Short: "Print a ground track starting at the reference time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := opts.service(cmd)
			if err != nil {
				return err
			}
			points, err := svc.Track(args[0], svc.Now(), samples, step)
			if err != nil {
				return err
			}
			return opts.emit(cmd.OutOrStdout(), points, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "TIME\tLAT\tLON\tALT_KM")
				for _, p := range points {
					fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.1f\n", p.Time.Format(timeLayout), p.Latitude, p.Longitude, p.Altitude)
				}
			})
		},
	}
	def := tracking.DefaultConfig()
	cmd.Flags().IntVar(&samples, "samples", def.TrackSamples, "number of points")
	cmd.Flags().DurationVar(&step, "step", def.TrackStep, "spacing between points")
	return cmd
}
