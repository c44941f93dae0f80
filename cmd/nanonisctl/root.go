package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/jirkagzw/Nanonis-Light-interface/command"
	"github.com/jirkagzw/Nanonis-Light-interface/internal/env"
	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
	"github.com/jirkagzw/Nanonis-Light-interface/textconn"
)

// app carries the settings shared by all subcommands.
type app struct {
	configPath string
	verbose    bool

	// flag values, applied over the loaded config when set
	spmHost      string
	spmPort      int
	specHost     string
	specPort     int
	readPolicy   string
	logLevel     string
	logBackend   string
	replyTimeout string
	strict       bool

	cfg    env.Config
	logger logger.Logger
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "nanonisctl",
		Short: "Control a Nanonis SPM and a spectrometer over TCP",
		Long: `Control a Nanonis SPM and a spectrometer over TCP

Settings are read from the optional TOML file given by --config, then from .env.local and the
NANONIS_* environment variables, then from the command line flags.

Usage
	nanonisctl bias set 50m
	nanonisctl signals get 0 30 --wait
	nanonisctl call Bias.Get --schema '["float32"]'
`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "TOML configuration file")
	flags.StringVar(&a.spmHost, "spm-host", "", "host of the Nanonis TCP programming interface")
	flags.IntVar(&a.spmPort, "spm-port", 0, "port of the Nanonis TCP programming interface")
	flags.StringVar(&a.specHost, "spec-host", "", "host of the spectrometer server")
	flags.IntVar(&a.specPort, "spec-port", 0, "port of the spectrometer server")
	flags.StringVar(&a.readPolicy, "read-policy", "", "response read policy: complete or single")
	flags.StringVar(&a.replyTimeout, "reply-timeout", "", "maximum wait for a reply, e.g. 30s (0 waits forever)")
	flags.BoolVar(&a.strict, "strict", false, "reject malformed responses instead of tolerating them")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.logBackend, "log-backend", "", "log backend: slog or zap")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log every decoded response at info level")

	root.AddCommand(
		newBiasCmd(a),
		newZCtrlCmd(a),
		newScanCmd(a),
		newSignalsCmd(a),
		newSpectrometerCmd(a),
		newAcquireCmd(a),
		newCallCmd(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := env.Load(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}

	if err := a.applyFlags(cmd, &cfg); err != nil {
		return err
	}

	l, err := env.MakeLogger(cfg)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = l
	a.out = cmd.OutOrStdout()
	logger.SetLogger(l)

	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *env.Config) error {
	flags := cmd.Flags()

	if flags.Changed("spm-host") {
		cfg.SPM.Host = a.spmHost
	}
	if flags.Changed("spm-port") {
		cfg.SPM.Port = a.spmPort
	}
	if flags.Changed("spec-host") {
		cfg.Spectrometer.Host = a.specHost
	}
	if flags.Changed("spec-port") {
		cfg.Spectrometer.Port = a.specPort
	}
	if flags.Changed("read-policy") {
		cfg.ReadPolicy = a.readPolicy
	}
	if flags.Changed("reply-timeout") {
		d, err := time.ParseDuration(a.replyTimeout)
		if err != nil {
			return fmt.Errorf("invalid --reply-timeout: %w", err)
		}
		cfg.ReplyTimeout = d
	}
	if flags.Changed("strict") {
		cfg.Strict = a.strict
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-backend") {
		cfg.LogBackend = a.logBackend
	}

	return nil
}

func (a *app) openSPM(ctx context.Context) (*spmconn.Connection, error) {
	policy, err := spmconn.ParseReadPolicy(a.cfg.ReadPolicy)
	if err != nil {
		return nil, err
	}

	cfg, err := spmconn.NewConnectionConfig(a.cfg.SPM.Host, a.cfg.SPM.Port,
		spmconn.WithReadPolicy(policy),
		spmconn.WithReplyTimeout(a.cfg.ReplyTimeout),
		spmconn.WithStrictDecode(a.cfg.Strict),
		spmconn.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	conn, err := spmconn.NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Open(ctx); err != nil {
		return nil, err
	}

	return conn, nil
}

func (a *app) openSpectrometer(ctx context.Context) (*textconn.Connection, error) {
	cfg, err := textconn.NewConnectionConfig(a.cfg.Spectrometer.Host, a.cfg.Spectrometer.Port,
		textconn.WithTerminator(a.cfg.Terminator),
		textconn.WithReplyTimeout(a.cfg.ReplyTimeout),
		textconn.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	conn, err := textconn.NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	if err := conn.Open(ctx); err != nil {
		return nil, err
	}

	return conn, nil
}

func (a *app) callOptions() []spmconn.CallOption {
	if a.verbose {
		return []spmconn.CallOption{spmconn.WithVerbose()}
	}

	return nil
}

// withSPM opens the SPM connection, runs fn and closes the connection.
func (a *app) withSPM(ctx context.Context, fn func(conn *spmconn.Connection, spm *command.SPM) error) (err error) {
	conn, err := a.openSPM(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	return fn(conn, command.NewSPM(conn, a.callOptions()...))
}

// withSpectrometer opens the spectrometer connection, drains stale bytes, runs fn and closes
// the connection.
func (a *app) withSpectrometer(ctx context.Context, fn func(spec *command.Spectrometer) error) (err error) {
	conn, err := a.openSpectrometer(ctx)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	if n, err := conn.Drain(); err != nil {
		return err
	} else if n > 0 {
		a.logger.Debug("drained stale spectrometer bytes", "bytes", n)
	}

	return fn(command.NewSpectrometer(conn))
}
