package acquire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/jirkagzw/Nanonis-Light-interface/internal/pool"
	"github.com/jirkagzw/Nanonis-Light-interface/internal/task"
	"github.com/jirkagzw/Nanonis-Light-interface/internal/util"
	"github.com/jirkagzw/Nanonis-Light-interface/logger"
	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
)

// SignalReader reads SPM signal values. *command.SPM satisfies it.
type SignalReader interface {
	SignalsValsGet(indexes []int32, waitForNew bool) ([]float32, nanonis.ErrorRecord, error)
}

// Exposer runs a spectrometer command and blocks until its reply. *command.Spectrometer satisfies it.
type Exposer interface {
	Raw(cmd string) (string, error)
}

// Plan describes one coordinated measurement.
type Plan struct {
	// Signals are the signal indexes read on every sample.
	Signals []int32
	// WaitForNew asks the SPM server to wait for a fresh value before replying.
	WaitForNew bool
	// Interval is the pause between the end of one read and the start of the next. Zero samples
	// back to back.
	Interval time.Duration
	// MaxSamples stops sampling after that many samples. Zero means no limit.
	MaxSamples int
	// Exposure is the spectrometer command whose reply marks the end of the measurement.
	Exposure string
}

func (p Plan) validate() error {
	if len(p.Signals) == 0 {
		return ErrNoSignals
	}

	if p.Exposure == "" {
		return ErrNoExposure
	}

	if p.Interval < 0 {
		return ErrNegativePeriod
	}

	return nil
}

// Sample is one set of signal values in Plan.Signals order.
type Sample struct {
	At     time.Time
	Values []float32
}

// Result collects what one Run produced.
type Result struct {
	Samples []Sample
	// Faults are the non-zero error records returned while sampling. Faulted reads add no sample.
	Faults []nanonis.ErrorRecord
	// Reply is the spectrometer reply to Plan.Exposure.
	Reply    string
	Duration time.Duration
}

// Acquirer runs coordinated measurements over one SPM and one spectrometer.
type Acquirer struct {
	spm      SignalReader
	spec     Exposer
	logger   logger.Logger
	progress time.Duration
}

// Option configures an Acquirer.
type Option func(*Acquirer)

// WithLogger sets the logger. The default is the package level logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Acquirer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithProgress logs the number of collected samples at the given interval while a Run is active.
func WithProgress(interval time.Duration) Option {
	return func(a *Acquirer) {
		a.progress = interval
	}
}

// New returns an Acquirer sampling spm while exposing on spec.
func New(spm SignalReader, spec Exposer, opts ...Option) *Acquirer {
	a := &Acquirer{spm: spm, spec: spec, logger: logger.GetLogger()}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

type collector struct {
	mu  sync.Mutex
	res Result
	err error
}

func (c *collector) add(s Sample) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.res.Samples = append(c.res.Samples, s)

	return len(c.res.Samples)
}

func (c *collector) fault(rec nanonis.ErrorRecord) {
	c.mu.Lock()
	c.res.Faults = append(c.res.Faults, rec)
	c.mu.Unlock()
}

func (c *collector) fail(err error) {
	c.mu.Lock()
	c.err = multierr.Append(c.err, err)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.res.Samples)
}

// Run starts the exposure and samples signals until its reply arrives.
//
// A transport error while sampling stops sampling but not the exposure. The returned error
// combines the sampling and exposure errors. The Result is returned even when err is not nil.
func (a *Acquirer) Run(ctx context.Context, plan Plan) (*Result, error) {
	if err := plan.validate(); err != nil {
		return nil, err
	}

	plan.Signals = util.CloneSlice(plan.Signals, 0)

	start := time.Now()
	mgr := task.NewTaskManager(ctx, a.logger)
	defer mgr.Stop()

	col := &collector{}

	a.logger.Debug("acquisition started", "method", "Run", "signals", plan.Signals, "exposure", plan.Exposure)

	if err := mgr.Start("sample", a.sampler(mgr, plan, col)); err != nil {
		return nil, err
	}

	if a.progress > 0 {
		err := mgr.StartInterval("progress", func() bool {
			a.logger.Info("acquisition progress", "method", "Run", "samples", col.count())
			return true
		}, a.progress, false)
		if err != nil {
			mgr.Stop()
			mgr.Wait()

			return nil, err
		}
	}

	var reply string
	done, err := mgr.StartOnce("expose", func(context.Context) error {
		defer mgr.Stop()

		var err error
		reply, err = a.spec.Raw(plan.Exposure)

		return err
	})
	if err != nil {
		mgr.Stop()
		mgr.Wait()

		return nil, err
	}

	if expErr := <-done; expErr != nil {
		col.fail(fmt.Errorf("exposure %q: %w", plan.Exposure, expErr))
	}

	mgr.Wait()

	col.res.Reply = reply
	col.res.Duration = time.Since(start)

	a.logger.Debug("acquisition finished", "method", "Run",
		"samples", len(col.res.Samples), "faults", len(col.res.Faults), "duration", col.res.Duration)

	return &col.res, col.err
}

func (a *Acquirer) sampler(mgr *task.TaskManager, plan Plan, col *collector) task.TaskFunc {
	return func() bool {
		values, rec, err := a.spm.SignalsValsGet(plan.Signals, plan.WaitForNew)
		if err != nil {
			col.fail(fmt.Errorf("sampling: %w", err))
			return false
		}

		if !rec.OK() {
			a.logger.Warn("sampling fault", "method", "Run", "status", rec.Status, "description", rec.Description)
			col.fault(rec)
		} else if n := col.add(Sample{At: time.Now(), Values: values}); plan.MaxSamples > 0 && n >= plan.MaxSamples {
			return false
		}

		if plan.Interval <= 0 {
			return true
		}

		return pool.Sleep(mgr.Context(), plan.Interval)
	}
}
