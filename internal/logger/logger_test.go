package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Info("engine ready")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "engine ready", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_ComponentAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	l.Component("auth").With().
		Str("table", "utilisateur").
		Int("mandatory", 2).
		Logger().
		Info("catalogue loaded")

	entry := decode(t, buf)
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "utilisateur", entry["table"])
	assert.Equal(t, float64(2), entry["mandatory"])
}

func TestLogger_WarnAndErrorWith(t *testing.T) {
	tests := []struct {
		name  string
		log   func(*Logger, error)
		level string
	}{
		{
			name:  "warn",
			log:   func(l *Logger, err error) { l.WarnWith("attempt log not written", err, map[string]any{"path": "auth.log"}) },
			level: "warn",
		},
		{
			name:  "error",
			log:   func(l *Logger, err error) { l.ErrorWith("attempt log not written", err, map[string]any{"path": "auth.log"}) },
			level: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			l := New(&Config{Level: "warn", Format: "json", Output: buf})

			tt.log(l, errors.New("permission denied"))

			entry := decode(t, buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, "permission denied", entry["error"])
			assert.Equal(t, "auth.log", entry["path"])
		})
	}
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := l.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestFromContext_FallsBackToGlobal(t *testing.T) {
	assert.Same(t, Global(), FromContext(context.Background()))
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("m") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("m") }, false},
		{"warning alias", "warning", func(l *Logger) { l.Warn("m") }, true},
		{"error level logs error", "error", func(l *Logger) { l.Error("m") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("m") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestOpenFile_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.log")

	for i := 0; i < 2; i++ {
		l, f, err := OpenFile(path, "info")
		require.NoError(t, err)
		l.Info("insert")
		require.NoError(t, f.Close())
	}

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().ErrorWith("ignored", errors.New("x"), nil)
	})
}

func BenchmarkLogger_Info(b *testing.B) {
	l := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Info("benchmark message")
	}
}

func BenchmarkLogger_WithFields(b *testing.B) {
	l := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.With().
			Str("component", "auth").
			Int("attempt", i).
			Logger().
			Info("benchmark message")
	}
}
