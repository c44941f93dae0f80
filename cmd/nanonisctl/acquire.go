package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/jirkagzw/Nanonis-Light-interface/acquire"
	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
)

func newAcquireCmd(a *app) *cobra.Command {
	var (
		signals  []string
		plan     acquire.Plan
		progress time.Duration
	)

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Sample SPM signals while the spectrometer runs an exposure",
		Long: `Sample SPM signals while the spectrometer runs an exposure.

The exposure command is sent to the spectrometer; its reply ends the measurement. Until then the
given signals are read from the SPM, back to back or every --interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			indexes, err := parseIndexes(signals)
			if err != nil {
				return err
			}
			plan.Signals = indexes

			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				return a.withSpectrometer(cmd.Context(), func(spec *command.Spectrometer) error {
					acq := acquire.New(spm, spec, acquire.WithLogger(a.logger), acquire.WithProgress(progress))

					res, runErr := acq.Run(cmd.Context(), plan)
					if res == nil {
						return runErr
					}

					d := newDoc("acquire").
						set("exposure", plan.Exposure).
						set("reply", res.Reply).
						set("duration_s", res.Duration.Seconds()).
						set("indexes", plan.Signals).
						set("faults", len(res.Faults)).
						setRaw("samples", "[]")
					for _, s := range res.Samples {
						d.set("samples.-1", map[string]any{
							"t":      s.At.Format(time.RFC3339Nano),
							"values": s.Values,
						})
					}

					return multierr.Append(runErr, a.emit(d, nanonis.ErrorRecord{}))
				})
			})
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&signals, "signals", "s", nil, "signal indexes to sample, e.g. 0,30")
	flags.StringVarP(&plan.Exposure, "exposure", "e", "", "spectrometer command that runs the exposure")
	flags.DurationVar(&plan.Interval, "interval", 0, "pause between samples, 0 samples back to back")
	flags.IntVar(&plan.MaxSamples, "max-samples", 0, "stop sampling after this many samples, 0 for no limit")
	flags.BoolVar(&plan.WaitForNew, "wait", false, "wait for fresh signal values")
	flags.DurationVar(&progress, "progress", 0, "log progress at this interval")
	_ = cmd.MarkFlagRequired("signals")
	_ = cmd.MarkFlagRequired("exposure")

	return cmd
}
