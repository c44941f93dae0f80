package spmconn

import "sync/atomic"

// OpState is the lifecycle state of a Connection's socket.
type OpState uint32

const (
	ClosedState OpState = iota
	ClosingState
	OpeningState
	OpenedState
)

func (s OpState) String() string {
	switch s {
	case ClosedState:
		return "Closed"
	case ClosingState:
		return "Closing"
	case OpeningState:
		return "Opening"
	case OpenedState:
		return "Opened"
	default:
		return "Unknown"
	}
}

// AtomicOpState holds an OpState and only moves along Closed → Opening → Opened → Closing → Closed.
type AtomicOpState struct {
	state atomic.Uint32
}

func (st *AtomicOpState) String() string {
	return st.Get().String()
}

// Get returns the current state.
func (st *AtomicOpState) Get() OpState {
	return OpState(st.state.Load())
}

func (st *AtomicOpState) IsClosed() bool {
	return st.Get() == ClosedState
}

func (st *AtomicOpState) IsOpened() bool {
	return st.Get() == OpenedState
}

func (st *AtomicOpState) ToOpening() bool {
	return st.state.CompareAndSwap(uint32(ClosedState), uint32(OpeningState))
}

func (st *AtomicOpState) ToOpened() bool {
	if st.IsOpened() {
		return true
	}

	return st.state.CompareAndSwap(uint32(OpeningState), uint32(OpenedState))
}

func (st *AtomicOpState) ToClosing() bool {
	result := st.state.CompareAndSwap(uint32(OpenedState), uint32(ClosingState))
	if !result {
		return st.state.CompareAndSwap(uint32(OpeningState), uint32(ClosingState))
	}

	return result
}

func (st *AtomicOpState) ToClosed() bool {
	if st.IsClosed() {
		return true
	}

	return st.state.CompareAndSwap(uint32(ClosingState), uint32(ClosedState))
}

// CallState is the phase of the exchange currently running on a Connection.
type CallState uint32

const (
	// IdleState means no exchange is in flight.
	IdleState CallState = iota
	// SendingState means the request frame is being written.
	SendingState
	// AwaitingResponseState means the connection is blocked reading the response frame.
	AwaitingResponseState
	// DecodingState means the response frame is being decoded.
	DecodingState
)

func (s CallState) String() string {
	switch s {
	case IdleState:
		return "Idle"
	case SendingState:
		return "Sending"
	case AwaitingResponseState:
		return "AwaitingResponse"
	case DecodingState:
		return "Decoding"
	default:
		return "Unknown"
	}
}

type atomicCallState struct {
	state atomic.Uint32
}

func (st *atomicCallState) Get() CallState {
	return CallState(st.state.Load())
}

func (st *atomicCallState) Set(s CallState) {
	st.state.Store(uint32(s))
}
