package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		"debug":        {input: "debug", want: slog.LevelDebug},
		"upper warn":   {input: "WARN", want: slog.LevelWarn},
		"warning":      {input: "warning", want: slog.LevelWarn},
		"error":        {input: " error ", want: slog.LevelError},
		"empty":        {input: "", want: slog.LevelInfo},
		"unknown name": {input: "verbose", want: slog.LevelInfo, wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParseLevel(test.input)
			if test.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, test.want, got)
		})
	}
}

func TestNew_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo)

	log.Debug("hidden")
	log.Info("rule applied", "rule", "gross_revenue", "rows", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "level=info")
	assert.Contains(t, out, "rule=gross_revenue")
	assert.Contains(t, out, "rows=3")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	assert.False(t, log.Enabled(context.Background(), slog.LevelError))
}

func TestLevel(t *testing.T) {
	tests := map[string]struct {
		debug      bool
		env        string
		configured string
		want       slog.Level
		wantErr    bool
	}{
		"debug flag wins":      {debug: true, env: "error", configured: "warn", want: slog.LevelDebug},
		"env over configured":  {env: "error", configured: "warn", want: slog.LevelError},
		"configured":           {configured: "warn", want: slog.LevelWarn},
		"default info":         {want: slog.LevelInfo},
		"bad configured level": {configured: "loud", wantErr: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv(EnvLevel, test.env)

			got, err := Level(test.debug, test.configured)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}
