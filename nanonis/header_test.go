package nanonis

import (
	"strings"
	"testing"

	"github.com/jirkagzw/Nanonis-Light-interface/wire"
	"github.com/stretchr/testify/require"
)

func TestEncodeHeader_Layout(t *testing.T) {
	require := require.New(t)

	b, err := EncodeHeader("Bias.Set", 4, true)
	require.NoError(err)
	require.Len(b, HeaderSize)

	want := make([]byte, HeaderSize)
	copy(want, "Bias.Set")
	want[35] = 4
	want[37] = 1
	require.Equal(want, b)

	b, err = EncodeHeader("Bias.Get", 0, false)
	require.NoError(err)
	require.Equal(make([]byte, 8), b[32:])
}

func TestHeader_RoundTrip(t *testing.T) {
	tests := []struct {
		description  string
		name         string
		bodySize     int32
		wantResponse bool
	}{
		{"empty body", "Bias.Get", 0, true},
		{"small body", "Bias.Set", 4, false},
		{"max body", "Scan.FrameDataGrab", 1<<31 - 1, true},
		{"name of exactly 32 bytes", strings.Repeat("x", NameSize), 12, true},
		{"one byte name", "a", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			require := require.New(t)

			b, err := EncodeHeader(tt.name, tt.bodySize, tt.wantResponse)
			require.NoError(err)
			require.Len(b, HeaderSize)

			h, err := DecodeHeader(b)
			require.NoError(err)
			require.Equal(tt.name, h.Name)
			require.Equal(tt.bodySize, h.BodySize)
			require.Equal(tt.wantResponse, h.WantResponse)
		})
	}
}

func TestEncodeHeader_Errors(t *testing.T) {
	require := require.New(t)

	_, err := EncodeHeader(strings.Repeat("x", NameSize+1), 0, true)
	require.ErrorIs(err, ErrCommandNameTooLong)

	_, err = EncodeHeader("", 0, true)
	require.ErrorIs(err, ErrEmptyCommandName)

	_, err = EncodeHeader("Bias.Set", -1, true)
	require.ErrorIs(err, ErrNegativeBodySize)
}

func TestDecodeHeader_Errors(t *testing.T) {
	require := require.New(t)

	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	var framingErr *wire.FramingError
	require.ErrorAs(err, &framingErr)
	require.ErrorIs(err, wire.ErrShortBuffer)

	b := make([]byte, HeaderSize)
	copy(b, "Bias.Get")
	b[32] = 0x80
	_, err = DecodeHeader(b)
	require.ErrorIs(err, wire.ErrNegativeLength)
}

func TestEncodeRequest(t *testing.T) {
	require := require.New(t)

	b, err := EncodeRequest("Bias.Set", true, wire.Arg{Value: float32(0.5), Tag: wire.Float32})
	require.NoError(err)
	require.Len(b, HeaderSize+4)

	h, err := DecodeHeader(b)
	require.NoError(err)
	require.Equal(int32(4), h.BodySize)
	require.Equal([]byte{0x3F, 0x00, 0x00, 0x00}, b[HeaderSize:])

	b, err = EncodeRequest("Bias.Get", true)
	require.NoError(err)
	require.Len(b, HeaderSize)

	_, err = EncodeRequest("Bias.Set", true, wire.Arg{Value: "x", Tag: wire.Float32})
	var encErr *wire.EncodeError
	require.ErrorAs(err, &encErr)

	_, err = EncodeRequest(strings.Repeat("y", 40), true)
	require.ErrorIs(err, ErrCommandNameTooLong)
}
