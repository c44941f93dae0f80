package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
)

func newSpectrometerCmd(a *app) *cobra.Command {
	spec := &cobra.Command{
		Use:     "spectrometer",
		Aliases: []string{"spec"},
		Short:   "Send text commands to the spectrometer server",
	}

	spec.AddCommand(&cobra.Command{
		Use:   "wl NM",
		Short: "Set the center wavelength in nanometers, 0 selects the zeroth order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nm, err := command.ParseSI(args[0])
			if err != nil {
				return err
			}

			return a.withSpectrometer(cmd.Context(), func(s *command.Spectrometer) error {
				reply, err := s.SetWavelength(nm)
				if err != nil {
					return err
				}

				d := newDoc("SWL").set("wavelength_nm", nm).set("reply", reply)

				return a.emit(d, nanonis.ErrorRecord{})
			})
		},
	})

	spec.AddCommand(&cobra.Command{
		Use:   "raw COMMAND...",
		Short: "Send a command as is and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := strings.Join(args, " ")

			return a.withSpectrometer(cmd.Context(), func(s *command.Spectrometer) error {
				reply, err := s.Raw(line)
				if err != nil {
					return err
				}

				return a.emit(newDoc(line).set("reply", reply), nanonis.ErrorRecord{})
			})
		},
	})

	return spec
}
