package command

import (
	"fmt"
	"math"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/spmconn"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// Exchanger runs one request/response exchange. *spmconn.Connection satisfies it.
type Exchanger interface {
	Exchange(name string, args []wire.Arg, schema *wire.Schema, opts ...spmconn.CallOption) (*nanonis.Response, error)
}

// SPM wraps the Nanonis commands used for scanning and signal acquisition.
type SPM struct {
	conn Exchanger
	opts []spmconn.CallOption
}

// NewSPM returns an SPM that runs every exchange on conn with opts.
func NewSPM(conn Exchanger, opts ...spmconn.CallOption) *SPM {
	return &SPM{conn: conn, opts: opts}
}

var (
	emptySchema   = wire.MustSchema()
	float32Schema = wire.MustSchema(wire.Float32)
	uint32Schema  = wire.MustSchema(wire.UInt32)

	scanFrameSchema     = wire.MustSchema(wire.Float32, wire.Float32, wire.Float32, wire.Float32, wire.Float32)
	scanBufferSchema    = wire.MustSchema(wire.Int32, wire.Array1D(wire.Int32), wire.Int32, wire.Int32)
	scanFrameDataSchema = wire.MustSchema(wire.Int32, wire.Str, wire.Int32, wire.Int32, wire.FloatArray2D, wire.UInt32)
	scanWaitSchema      = wire.MustSchema(wire.UInt32, wire.UInt32, wire.Str)
	signalsNamesSchema  = wire.MustSchema(wire.Int32, wire.Int32, wire.StringArray1D)
	signalsValsSchema   = wire.MustSchema(wire.Int32, wire.Array1D(wire.Float32))
)

func (s *SPM) exchange(name string, schema *wire.Schema, args ...wire.Arg) (*nanonis.Response, error) {
	resp, err := s.conn.Exchange(name, args, schema, s.opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Values) != schema.Len() {
		return nil, fmt.Errorf("%w: %s returned %d values, want %d", ErrUnexpectedReply, name, len(resp.Values), schema.Len())
	}

	return resp, nil
}

// set runs a command that returns nothing but the error tail.
func (s *SPM) set(name string, args ...wire.Arg) (nanonis.ErrorRecord, error) {
	resp, err := s.exchange(name, emptySchema, args...)
	if err != nil {
		return nanonis.ErrorRecord{}, err
	}

	return resp.Error, nil
}

// getFloat runs a command that returns a single Float32.
func (s *SPM) getFloat(name string, args ...wire.Arg) (float64, nanonis.ErrorRecord, error) {
	resp, err := s.exchange(name, float32Schema, args...)
	if err != nil {
		return 0, nanonis.ErrorRecord{}, err
	}

	v, err := resp.Value(0).Float()
	if err != nil {
		return 0, resp.Error, fmt.Errorf("%w: %s: %w", ErrUnexpectedReply, name, err)
	}

	return v, resp.Error, nil
}

func float32Arg(v float64) wire.Arg {
	return wire.Arg{Value: float32(v), Tag: wire.Float32}
}

// BiasSet sets the tip bias in volts.
func (s *SPM) BiasSet(volts float64) (nanonis.ErrorRecord, error) {
	if math.IsNaN(volts) || math.Abs(volts) > 10 {
		return nanonis.ErrorRecord{}, fmt.Errorf("%w: %g", ErrBiasOutOfRange, volts)
	}

	return s.set("Bias.Set", float32Arg(volts))
}

// BiasGet returns the tip bias in volts.
func (s *SPM) BiasGet() (float64, nanonis.ErrorRecord, error) {
	return s.getFloat("Bias.Get")
}

// ZCtrlSetpntSet sets the Z-controller setpoint in the unit of the controlled signal.
func (s *SPM) ZCtrlSetpntSet(setpoint float64) (nanonis.ErrorRecord, error) {
	return s.set("ZCtrl.SetpntSet", float32Arg(setpoint))
}

// ZCtrlZPosGet returns the Z position of the tip in meters.
func (s *SPM) ZCtrlZPosGet() (float64, nanonis.ErrorRecord, error) {
	return s.getFloat("ZCtrl.ZPosGet")
}
