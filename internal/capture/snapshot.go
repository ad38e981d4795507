// Package capture renders the board page to a PNG with headless Chromium,
// for kiosks and frames that can only show a still image.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "statusboard/internal/log"
)

const (
	DefaultWidth   = 800
	DefaultHeight  = 480
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the board root once the agenda has been drawn.
	ReadySelector = `[data-ready="true"]`
)

// Options defines one snapshot of the board.
type Options struct {
	// URL of the board page, e.g. "http://127.0.0.1:8080/".
	URL string

	// OutputPath receives the PNG; it is replaced atomically.
	OutputPath string

	// Width and Height are the viewport size in pixels. Zero means
	// DefaultWidth / DefaultHeight.
	Width  int
	Height int

	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// Snapshotter takes board snapshots with fixed options.
type Snapshotter struct {
	opts Options
}

// NewSnapshotter validates opts and fills in defaults.
func NewSnapshotter(opts Options) (*Snapshotter, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Snapshotter{opts: opts}, nil
}

// Snapshot captures the board once.
func (s *Snapshotter) Snapshot(ctx context.Context) error {
	return CaptureBoardPNG(ctx, s.opts)
}

// CaptureBoardPNG starts a headless Chromium through chromedp, opens
// opts.URL, waits until the board marks itself ready and writes a full
// page screenshot to opts.OutputPath.
func CaptureBoardPNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let web fonts settle.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	started := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := writeAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("board snapshot written", "path", opts.OutputPath, "bytes", len(png), "took", time.Since(started).String())
	return nil
}

// writeAtomic replaces path with data so readers never see a partial PNG.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
