package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Info("hello %d", 1)
	l.Warning("careful")
	l.Error("failed: %s", "x")

	out := buf.String()
	require.Contains(t, out, "INFO    ")
	require.Contains(t, out, "hello 1")
	require.Contains(t, out, "WARNING ")
	require.Contains(t, out, "careful")
	require.Contains(t, out, "failed: x")
	require.Contains(t, out, "logger_test.go")
}

func TestNewFileLogger_WritesPerLevelFiles(t *testing.T) {
	dir := t.TempDir()

	l, err := NewFileLogger(dir)
	require.NoError(t, err)

	l.Error("disk full")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(filepath.Join(dir, "error.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "disk full")

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	require.Empty(t, info)
}
