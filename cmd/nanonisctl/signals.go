package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
)

func newSignalsCmd(a *app) *cobra.Command {
	signals := &cobra.Command{
		Use:   "signals",
		Short: "List and read signals",
	}

	signals.AddCommand(&cobra.Command{
		Use:   "names",
		Short: "Print the signal names; the position is the signal index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				names, rec, err := spm.SignalsNamesGet()
				if err != nil {
					return err
				}

				return a.emit(newDoc("Signals.NamesGet").set("names", names), rec)
			})
		},
	})

	var wait bool
	get := &cobra.Command{
		Use:   "get INDEX...",
		Short: "Print the values of the given signal indexes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexes, err := parseIndexes(args)
			if err != nil {
				return err
			}

			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				values, rec, err := spm.SignalsValsGet(indexes, wait)
				if err != nil {
					return err
				}

				d := newDoc("Signals.ValsGet").set("indexes", indexes).set("values", values)

				return a.emit(d, rec)
			})
		},
	}
	get.Flags().BoolVar(&wait, "wait", false, "wait for fresh values")
	signals.AddCommand(get)

	return signals
}

// parseIndexes accepts indexes as separate arguments or comma separated lists.
func parseIndexes(args []string) ([]int32, error) {
	var out []int32
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			v, err := strconv.ParseInt(part, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid signal index %q", part)
			}
			if v < 0 {
				return nil, fmt.Errorf("signal index %d is negative", v)
			}
			out = append(out, int32(v))
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no signal index given")
	}

	return out, nil
}
