package main

import (
	"github.com/spf13/cobra"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
)

func newBiasCmd(a *app) *cobra.Command {
	bias := &cobra.Command{
		Use:   "bias",
		Short: "Get or set the tip bias",
	}

	bias.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the bias voltage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				v, rec, err := spm.BiasGet()
				if err != nil {
					return err
				}

				return a.emit(newDoc("Bias.Get").set("bias_v", v), rec)
			})
		},
	})

	bias.AddCommand(&cobra.Command{
		Use:   "set VOLTS",
		Short: "Set the bias voltage, SI prefixes accepted (e.g. 50m)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := command.ParseSI(args[0])
			if err != nil {
				return err
			}

			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				rec, err := spm.BiasSet(v)
				if err != nil {
					return err
				}

				return a.emit(newDoc("Bias.Set").set("bias_v", v), rec)
			})
		},
	})

	return bias
}

func newZCtrlCmd(a *app) *cobra.Command {
	zctrl := &cobra.Command{
		Use:   "zctrl",
		Short: "Z-controller setpoint and tip height",
	}

	zctrl.AddCommand(&cobra.Command{
		Use:   "setpoint VALUE",
		Short: "Set the Z-controller setpoint, SI prefixes accepted (e.g. 100p)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := command.ParseSI(args[0])
			if err != nil {
				return err
			}

			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				rec, err := spm.ZCtrlSetpntSet(v)
				if err != nil {
					return err
				}

				return a.emit(newDoc("ZCtrl.SetpntSet").set("setpoint", v), rec)
			})
		},
	})

	zctrl.AddCommand(&cobra.Command{
		Use:   "zpos",
		Short: "Print the Z position of the tip",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				z, rec, err := spm.ZCtrlZPosGet()
				if err != nil {
					return err
				}

				return a.emit(newDoc("ZCtrl.ZPosGet").set("z_m", z), rec)
			})
		},
	})

	return zctrl
}
