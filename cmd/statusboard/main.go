package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"statusboard/internal/board"
	"statusboard/internal/capture"
	"statusboard/internal/config"
	"statusboard/internal/ics"
	appLog "statusboard/internal/log"
	"statusboard/internal/web"
)

const version = "0.1.0"

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func init() {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("failed to load .env", "error", err.Error())
	}
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("statusboard starting",
		"version", version,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"calendars", len(conf.Calendars),
		"proxy", conf.CORSProxy.URL != "",
		"snapshot", conf.Snapshot.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags.once); err != nil {
		appLog.Error("statusboard failed", err)
		os.Exit(1)
	}
	appLog.Info("statusboard exiting")
}

func run(ctx context.Context, conf *config.Config, once bool) error {
	fetcher := ics.NewFetcher(conf.CacheDir, ics.Proxy{
		URL:     conf.CORSProxy.URL,
		Headers: conf.CORSProxy.Headers,
	})

	var opts []board.Option
	if conf.Snapshot.Enabled && !once {
		snap, err := capture.NewSnapshotter(capture.Options{
			URL:        conf.SnapshotURL(),
			OutputPath: conf.Snapshot.Output,
			Width:      conf.Snapshot.Width,
			Height:     conf.Snapshot.Height,
		})
		if err != nil {
			return err
		}
		opts = append(opts, board.WithSnapshotter(snap))
	}

	svc, err := board.New(conf, fetcher, opts...)
	if err != nil {
		return err
	}

	if once {
		sel, err := svc.Refresh(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(web.NewAgenda(sel))
	}

	// The socket is bound before the first refresh so its snapshot can
	// load the board page.
	ln, err := web.Listen(conf)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return web.Serve(ctx, ln, conf, svc) })
	g.Go(func() error { return svc.Run(ctx) })
	return g.Wait()
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one refresh, print the agenda as JSON and exit")

	flag.Parse()

	return cfg
}
