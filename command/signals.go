package command

import (
	"fmt"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

func waitArg(waitForNew bool) wire.Arg {
	var v uint32
	if waitForNew {
		v = 1
	}

	return wire.Arg{Value: v, Tag: wire.UInt32}
}

// SignalsNamesGet returns the names of the signals available in the signals manager.
// The position of a name is the signal index used by SignalsValGet and SignalsValsGet.
func (s *SPM) SignalsNamesGet() ([]string, nanonis.ErrorRecord, error) {
	resp, err := s.exchange("Signals.NamesGet", signalsNamesSchema)
	if err != nil {
		return nil, nanonis.ErrorRecord{}, err
	}

	names, err := resp.Value(2).Strings()
	if err != nil {
		return nil, resp.Error, fmt.Errorf("%w: Signals.NamesGet: %w", ErrUnexpectedReply, err)
	}

	return names, resp.Error, nil
}

// SignalsValGet returns the value of one signal. With waitForNew the server waits for a fresh sample.
func (s *SPM) SignalsValGet(index int32, waitForNew bool) (float64, nanonis.ErrorRecord, error) {
	return s.getFloat("Signals.ValGet", wire.Arg{Value: index, Tag: wire.Int32}, waitArg(waitForNew))
}

// SignalsValsGet returns the values of several signals in the order of indexes.
func (s *SPM) SignalsValsGet(indexes []int32, waitForNew bool) ([]float32, nanonis.ErrorRecord, error) {
	resp, err := s.exchange("Signals.ValsGet", signalsValsSchema,
		wire.Arg{Value: len(indexes), Tag: wire.Int32},
		wire.Arg{Value: indexes, Tag: wire.Array1D(wire.Int32)},
		waitArg(waitForNew),
	)
	if err != nil {
		return nil, nanonis.ErrorRecord{}, err
	}

	values, err := resp.Value(1).Float32s()
	if err != nil {
		return nil, resp.Error, fmt.Errorf("%w: Signals.ValsGet: %w", ErrUnexpectedReply, err)
	}

	return values, resp.Error, nil
}
