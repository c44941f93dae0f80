package wire

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jirkagzw/Nanonis-Light-interface/logger"
)

func TestLogSink(t *testing.T) {
	l := logger.NewMockLogger()
	l.On("Warn", "tolerated decode mismatch", []any{
		"kind", "trailing_bytes",
		"command", "Bias.Get",
		"field", 1,
		"tag", Float32.String(),
		"expected", 12,
		"actual", 14,
	}).Return().Once()

	LogSink(l).Report(Diagnostic{
		Kind:     DiagTrailingBytes,
		Command:  "Bias.Get",
		Position: 1,
		Tag:      Float32,
		Expected: 12,
		Actual:   14,
	})

	l.AssertExpectations(t)
}

func TestLogSink_DecodeOverrun(t *testing.T) {
	l := logger.NewMockLogger()
	l.On("Warn", "tolerated decode mismatch", mock.Anything).Return()

	recorder := &Recorder{}
	body := append(AppendInt32(nil, 9), 'a', 'b')
	decoded, err := Decode(body, MustSchema(Int32, Str), DecodeOptions{
		Command: "Util.VersionGet",
		Sink:    MultiSink(recorder, nil, LogSink(l)),
	})
	require.NoError(t, err)

	text, _ := decoded.Values[1].Text()
	require.Equal(t, "ab", text)
	require.Len(t, recorder.Diagnostics(), 1)
	l.AssertNumberOfCalls(t, "Warn", 1)
	l.AssertCalled(t, "Warn", "tolerated decode mismatch", mock.MatchedBy(func(kv []any) bool {
		return len(kv) == 12 && kv[1] == "schema_mismatch" && kv[3] == "Util.VersionGet"
	}))
}
