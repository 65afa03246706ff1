package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel_FiltersMessages(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLogLevel("INFO")

	SetLogLevel("warn")
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "[WARN] shown 2")
	assert.Equal(t, LevelWarn, GetLogLevel())
}

func TestSetLogLevel_UnknownDefaultsToInfo(t *testing.T) {
	defer SetLogLevel("INFO")
	SetLogLevel("DEBUG")
	assert.Equal(t, LevelDebug, GetLogLevel())

	SetLogLevel("verbose")
	assert.Equal(t, LevelInfo, GetLogLevel())
}

func TestParseLevel(t *testing.T) {
	level, ok := ParseLevel(" error ")
	assert.True(t, ok)
	assert.Equal(t, LevelError, level)
	assert.Equal(t, "ERROR", level.String())

	_, ok = ParseLevel("nope")
	assert.False(t, ok)
}
