package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
)

func newScanCmd(a *app) *cobra.Command {
	scan := &cobra.Command{
		Use:   "scan",
		Short: "Scan frame, buffer, status and data",
	}

	scan.AddCommand(
		newScanFrameCmd(a),
		newScanBufferCmd(a),
		newScanStatusCmd(a),
		newScanWaitCmd(a),
		newScanGrabCmd(a),
	)

	return scan
}

func frameDoc(name string, f command.ScanFrame) *doc {
	return newDoc(name).
		set("frame.center_x_m", f.CenterX).
		set("frame.center_y_m", f.CenterY).
		set("frame.width_m", f.Width).
		set("frame.height_m", f.Height).
		set("frame.angle_deg", f.Angle)
}

// overlayFrame applies the keys of a JSON object onto f. Values are numbers or strings with an SI
// prefix such as "50n".
func overlayFrame(f command.ScanFrame, js string) (command.ScanFrame, error) {
	if !gjson.Valid(js) {
		return f, errors.New("frame is not valid JSON")
	}

	obj := gjson.Parse(js)
	if !obj.IsObject() {
		return f, errors.New("frame should be a JSON object")
	}

	fields := map[string]*float64{
		"center_x": &f.CenterX,
		"center_y": &f.CenterY,
		"width":    &f.Width,
		"height":   &f.Height,
		"angle":    &f.Angle,
	}

	var err error
	obj.ForEach(func(key, value gjson.Result) bool {
		dst, ok := fields[key.String()]
		if !ok {
			err = fmt.Errorf("unknown frame key %q", key.String())
			return false
		}

		*dst, err = siNumber(value)

		return err == nil
	})

	return f, err
}

// siNumber reads a JSON number or an SI string.
func siNumber(r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), nil
	case gjson.String:
		return command.ParseSI(r.String())
	default:
		return 0, fmt.Errorf("want a number, got %s", r.Raw)
	}
}

func newScanFrameCmd(a *app) *cobra.Command {
	frame := &cobra.Command{
		Use:   "frame",
		Short: "Get or set the scan frame",
	}

	frame.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the scan frame",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				f, rec, err := spm.ScanFrameGet()
				if err != nil {
					return err
				}

				return a.emit(frameDoc("Scan.FrameGet", f), rec)
			})
		},
	})

	frame.AddCommand(&cobra.Command{
		Use:   "set JSON",
		Short: `Change the scan frame, e.g. '{"width":"50n","angle":15}'`,
		Long: `Change the scan frame. The keys center_x, center_y, width, height and angle
not given keep their current values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				cur, rec, err := spm.ScanFrameGet()
				if err != nil {
					return err
				}
				if !rec.OK() {
					return a.emit(frameDoc("Scan.FrameGet", cur), rec)
				}

				next, err := overlayFrame(cur, args[0])
				if err != nil {
					return err
				}

				rec, err = spm.ScanFrameSet(next)
				if err != nil {
					return err
				}

				return a.emit(frameDoc("Scan.FrameSet", next), rec)
			})
		},
	})

	return frame
}

func newScanBufferCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "buffer",
		Short: "Print the recorded channels and the frame resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				buf, rec, err := spm.ScanBufferGet()
				if err != nil {
					return err
				}

				d := newDoc("Scan.BufferGet").
					set("channels", buf.ChannelIndexes).
					set("pixels", buf.Pixels).
					set("lines", buf.Lines)

				return a.emit(d, rec)
			})
		},
	}
}

func newScanStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print whether a scan is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				status, rec, err := spm.ScanStatusGet()
				if err != nil {
					return err
				}

				return a.emit(newDoc("Scan.StatusGet").set("running", status == command.ScanRunning), rec)
			})
		},
	}
}

func newScanWaitCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for the running scan to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				res, rec, err := spm.ScanWaitEndOfScan(timeout)
				if err != nil {
					return err
				}

				d := newDoc("Scan.WaitEndOfScan").
					set("timed_out", res.TimedOut).
					set("file", res.FilePath)

				return a.emit(d, rec)
			})
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", -1, "server side wait limit, negative waits forever")

	return cmd
}

func newScanGrabCmd(a *app) *cobra.Command {
	var (
		channel  uint32
		backward bool
	)

	cmd := &cobra.Command{
		Use:   "grab",
		Short: "Print the data of one recorded channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSPM(cmd.Context(), func(_ *spmconn.Connection, spm *command.SPM) error {
				data, rec, err := spm.ScanFrameDataGrab(channel, !backward)
				if err != nil {
					return err
				}

				d := newDoc("Scan.FrameDataGrab").
					set("channel", data.ChannelName).
					set("scan_up", data.ScanUp).
					set("data", data.Data)

				return a.emit(d, rec)
			})
		},
	}

	cmd.Flags().Uint32Var(&channel, "channel", 0, "channel index")
	cmd.Flags().BoolVar(&backward, "backward", false, "grab the backward scan direction")

	return cmd
}
