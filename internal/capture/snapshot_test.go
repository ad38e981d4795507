package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotterDefaults(t *testing.T) {
	s, err := NewSnapshotter(Options{URL: "http://127.0.0.1:8080/", OutputPath: "preview.png"})
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, s.opts.Width)
	assert.Equal(t, DefaultHeight, s.opts.Height)
	assert.Equal(t, DefaultTimeout, s.opts.Timeout)

	s, err = NewSnapshotter(Options{URL: "http://x/", OutputPath: "p.png", Width: 1200, Height: 825, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 1200, s.opts.Width)
	assert.Equal(t, 825, s.opts.Height)
}

func TestNewSnapshotterRequiresTargets(t *testing.T) {
	_, err := NewSnapshotter(Options{OutputPath: "p.png"})
	assert.ErrorContains(t, err, "URL")

	_, err = NewSnapshotter(Options{URL: "http://x/"})
	assert.ErrorContains(t, err, "OutputPath")
}

func TestWriteAtomicReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")

	require.NoError(t, writeAtomic(path, []byte("first")))
	require.NoError(t, writeAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
