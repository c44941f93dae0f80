package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nanonis.toml", `
spm_host = " 192.168.236.88 "
spm_port = 6502
read_policy = "single"
reply_timeout = "30s"
strict = true
log_backend = "zap"
`)

	cfg := Default()
	require.NoError(t, LoadFile(path, &cfg))

	assert.Equal(t, Endpoint{Host: "192.168.236.88", Port: 6502}, cfg.SPM)
	assert.Equal(t, Default().Spectrometer, cfg.Spectrometer)
	assert.Equal(t, "single", cfg.ReadPolicy)
	assert.Equal(t, 30*time.Second, cfg.ReplyTimeout)
	assert.True(t, cfg.Strict)
	assert.Equal(t, "\n", cfg.Terminator)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "zap", cfg.LogBackend)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad duration", `reply_timeout = "soon"`},
		{"bad syntax", `spm_port = `},
		{"wrong type", `spm_port = "6501"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := LoadFile(writeFile(t, dir, "c.toml", tt.content), &cfg)
			require.Error(t, err)
		})
	}

	cfg := Default()
	require.Error(t, LoadFile(filepath.Join(dir, "missing.toml"), &cfg))
}

func TestEnvOverlay(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		base    func(cfg *Config)
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "unset keeps defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "empty keeps defaults",
			env:  map[string]string{"NANONIS_SPM_PORT": "", "NANONIS_STRICT": "", "NANONIS_REPLY_TIMEOUT": ""},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "all values",
			env: map[string]string{
				"NANONIS_SPM_HOST":          "spm",
				"NANONIS_SPM_PORT":          "7000",
				"NANONIS_SPECTROMETER_HOST": "andor",
				"NANONIS_SPECTROMETER_PORT": "9000",
				"NANONIS_READ_POLICY":       "single",
				"NANONIS_REPLY_TIMEOUT":     "1m",
				"NANONIS_STRICT":            "true",
				"NANONIS_LOG_LEVEL":         "debug",
				"NANONIS_LOG_BACKEND":       "zap",
			},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, Endpoint{Host: "spm", Port: 7000}, cfg.SPM)
				assert.Equal(t, Endpoint{Host: "andor", Port: 9000}, cfg.Spectrometer)
				assert.Equal(t, "single", cfg.ReadPolicy)
				assert.Equal(t, time.Minute, cfg.ReplyTimeout)
				assert.True(t, cfg.Strict)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, "zap", cfg.LogBackend)
			},
		},
		{
			name: "zero values override earlier layers",
			env:  map[string]string{"NANONIS_STRICT": "false", "NANONIS_REPLY_TIMEOUT": "0s"},
			base: func(cfg *Config) {
				cfg.Strict = true
				cfg.ReplyTimeout = time.Minute
			},
			check: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.Strict)
				assert.Zero(t, cfg.ReplyTimeout)
			},
		},
		{name: "bad port", env: map[string]string{"NANONIS_SPM_PORT": "x"}, wantErr: true},
		{name: "bad spectrometer port", env: map[string]string{"NANONIS_SPECTROMETER_PORT": "x"}, wantErr: true},
		{name: "bad timeout", env: map[string]string{"NANONIS_REPLY_TIMEOUT": "10"}, wantErr: true},
		{name: "bad strict", env: map[string]string{"NANONIS_STRICT": "maybe"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if tt.base != nil {
				tt.base(&cfg)
			}
			err := overlayEnv(context.Background(), envconfig.MapLookuper(tt.env), &cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_Layers(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nanonis.toml", "spm_host = \"from-file\"\nspm_port = 6600\nlog_level = \"warn\"\n")
	writeFile(t, dir, ".env.local", "NANONIS_SPM_PORT=6700\nNANONIS_LOG_LEVEL=error\n")

	chdir(t, dir)
	t.Setenv("NANONIS_LOG_LEVEL", "debug")
	t.Cleanup(func() { _ = os.Unsetenv("NANONIS_SPM_PORT") })

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.SPM.Host)
	assert.Equal(t, 6700, cfg.SPM.Port)
	// process environment wins over .env.local
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_NoFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("NANONIS_SPECTROMETER_PORT", "8889")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Endpoint{Host: "localhost", Port: 8889}, cfg.Spectrometer)
	assert.Equal(t, Default().SPM, cfg.SPM)
}

func TestMakeLogger(t *testing.T) {
	for _, backend := range []string{"slog", "zap", ""} {
		cfg := Default()
		cfg.LogBackend = backend
		l, err := MakeLogger(cfg)
		require.NoError(t, err, backend)
		require.NotNil(t, l)
	}

	cfg := Default()
	cfg.LogBackend = "logrus"
	_, err := MakeLogger(cfg)
	require.Error(t, err)

	cfg = Default()
	cfg.LogLevel = "chatty"
	_, err = MakeLogger(cfg)
	require.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
