package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel(""))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestFieldsIgnoresDanglingKey(t *testing.T) {
	f := fields("uid", "abc", 42, "answer", "dangling")
	assert.Equal(t, "abc", f["uid"])
	assert.Equal(t, "answer", f["42"])
	assert.NotContains(t, f, "dangling")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelError)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Info("should be hidden", "k", "v")
	assert.Empty(t, buf.String())

	Error("calendar failed", errors.New("boom"), "url", "https://example.com/...(redacted)")
	out := buf.String()
	assert.Contains(t, out, "calendar failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "url=")
}
