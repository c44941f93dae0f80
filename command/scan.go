package command

import (
	"fmt"
	"time"

	"github.com/jirkagzw/Nanonis-Light-interface/nanonis"
	"github.com/jirkagzw/Nanonis-Light-interface/wire"
)

// ScanFrame is the scan frame geometry. Lengths are in meters, the angle in degrees.
type ScanFrame struct {
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
	Angle   float64
}

// ScanBuffer describes the recorded channels and the frame resolution.
type ScanBuffer struct {
	ChannelIndexes []int32
	Pixels         int32
	Lines          int32
}

// ScanFrameData is one recorded channel of the scan frame.
type ScanFrameData struct {
	ChannelName string
	// Data holds Lines rows of Pixels values.
	Data [][]float32
	// ScanUp reports whether the frame was scanned upwards.
	ScanUp bool
}

// ScanWaitResult is the outcome of waiting for the end of a scan.
type ScanWaitResult struct {
	TimedOut bool
	// FilePath is the file the scan was saved to, empty when autosave is off.
	FilePath string
}

// ScanStatus reports whether a scan is running.
type ScanStatus uint32

const (
	ScanStopped ScanStatus = 0
	ScanRunning ScanStatus = 1
)

// ScanFrameGet returns the scan frame geometry.
func (s *SPM) ScanFrameGet() (ScanFrame, nanonis.ErrorRecord, error) {
	resp, err := s.exchange("Scan.FrameGet", scanFrameSchema)
	if err != nil {
		return ScanFrame{}, nanonis.ErrorRecord{}, err
	}

	var f [5]float64
	for i := range f {
		if f[i], err = resp.Value(i).Float(); err != nil {
			return ScanFrame{}, resp.Error, fmt.Errorf("%w: Scan.FrameGet: %w", ErrUnexpectedReply, err)
		}
	}

	return ScanFrame{CenterX: f[0], CenterY: f[1], Width: f[2], Height: f[3], Angle: f[4]}, resp.Error, nil
}

// ScanFrameSet sets the scan frame geometry.
func (s *SPM) ScanFrameSet(frame ScanFrame) (nanonis.ErrorRecord, error) {
	return s.set("Scan.FrameSet",
		float32Arg(frame.CenterX),
		float32Arg(frame.CenterY),
		float32Arg(frame.Width),
		float32Arg(frame.Height),
		float32Arg(frame.Angle),
	)
}

// ScanBufferGet returns the recorded channels and the frame resolution.
func (s *SPM) ScanBufferGet() (ScanBuffer, nanonis.ErrorRecord, error) {
	resp, err := s.exchange("Scan.BufferGet", scanBufferSchema)
	if err != nil {
		return ScanBuffer{}, nanonis.ErrorRecord{}, err
	}

	indexes, err := resp.Value(1).Int32s()
	if err != nil {
		return ScanBuffer{}, resp.Error, fmt.Errorf("%w: Scan.BufferGet: %w", ErrUnexpectedReply, err)
	}
	pixels, _ := resp.Value(2).Int()
	lines, _ := resp.Value(3).Int()

	return ScanBuffer{ChannelIndexes: indexes, Pixels: int32(pixels), Lines: int32(lines)}, resp.Error, nil //nolint:gosec
}

// ScanBufferSet sets the recorded channels and the frame resolution.
func (s *SPM) ScanBufferSet(buf ScanBuffer) (nanonis.ErrorRecord, error) {
	return s.set("Scan.BufferSet",
		wire.Arg{Value: len(buf.ChannelIndexes), Tag: wire.Int32},
		wire.Arg{Value: buf.ChannelIndexes, Tag: wire.Array1D(wire.Int32)},
		wire.Arg{Value: buf.Pixels, Tag: wire.Int32},
		wire.Arg{Value: buf.Lines, Tag: wire.Int32},
	)
}

// ScanStatusGet reports whether a scan is running.
func (s *SPM) ScanStatusGet() (ScanStatus, nanonis.ErrorRecord, error) {
	resp, err := s.exchange("Scan.StatusGet", uint32Schema)
	if err != nil {
		return ScanStopped, nanonis.ErrorRecord{}, err
	}
	status, _ := resp.Value(0).Int()

	return ScanStatus(status), resp.Error, nil //nolint:gosec
}

// ScanFrameDataGrab returns the data of one recorded channel of the current frame.
// forward selects the forward or the backward scan direction.
func (s *SPM) ScanFrameDataGrab(channel uint32, forward bool) (ScanFrameData, nanonis.ErrorRecord, error) {
	var dir uint32
	if forward {
		dir = 1
	}

	resp, err := s.exchange("Scan.FrameDataGrab", scanFrameDataSchema,
		wire.Arg{Value: channel, Tag: wire.UInt32},
		wire.Arg{Value: dir, Tag: wire.UInt32},
	)
	if err != nil {
		return ScanFrameData{}, nanonis.ErrorRecord{}, err
	}

	name, err := resp.Value(1).Text()
	if err != nil {
		return ScanFrameData{}, resp.Error, fmt.Errorf("%w: Scan.FrameDataGrab: %w", ErrUnexpectedReply, err)
	}
	data, err := resp.Value(4).Matrix()
	if err != nil {
		return ScanFrameData{}, resp.Error, fmt.Errorf("%w: Scan.FrameDataGrab: %w", ErrUnexpectedReply, err)
	}
	up, _ := resp.Value(5).Int()

	return ScanFrameData{ChannelName: name, Data: data, ScanUp: up == 1}, resp.Error, nil
}

// ScanWaitEndOfScan blocks until the running scan ends or timeout expires. A negative timeout waits
// indefinitely.
func (s *SPM) ScanWaitEndOfScan(timeout time.Duration) (ScanWaitResult, nanonis.ErrorRecord, error) {
	ms := int32(-1)
	if timeout >= 0 {
		ms = int32(min(timeout.Milliseconds(), 1<<31-1)) //nolint:gosec
	}

	resp, err := s.exchange("Scan.WaitEndOfScan", scanWaitSchema, wire.Arg{Value: ms, Tag: wire.Int32})
	if err != nil {
		return ScanWaitResult{}, nanonis.ErrorRecord{}, err
	}

	timedOut, _ := resp.Value(0).Int()
	path, _ := resp.Value(2).Text()

	return ScanWaitResult{TimedOut: timedOut != 0, FilePath: path}, resp.Error, nil
}
