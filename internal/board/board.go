// Package board runs the refresh pipeline: fetch every calendar, parse it,
// resolve today's (or tomorrow's) agenda and keep the latest selection for
// the HTTP layer.
package board

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"statusboard/internal/agenda"
	"statusboard/internal/config"
	"statusboard/internal/ics"
	appLog "statusboard/internal/log"
	"statusboard/internal/metrics"
	"statusboard/internal/model"
)

// Fetcher downloads calendar bodies. *ics.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) []ics.FetchResult
}

// Snapshotter is notified after every successful pass. *capture.Snapshotter
// implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) error
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSnapshotter takes a board snapshot after every refresh.
func WithSnapshotter(snap Snapshotter) Option {
	return func(s *Service) { s.snapshot = snap }
}

// Service owns the current DisplaySelection.
type Service struct {
	fetcher  Fetcher
	sources  []agenda.Source
	loc      *time.Location
	schedule string
	now      func() time.Time
	snapshot Snapshotter

	// refreshMu serialises passes; mu guards current.
	refreshMu sync.Mutex
	mu        sync.RWMutex
	current   model.DisplaySelection
	refreshed bool
}

// New builds a Service for the calendars in cfg.
func New(cfg *config.Config, fetcher Fetcher, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("board: config is nil")
	}
	if fetcher == nil {
		return nil, errors.New("board: fetcher is nil")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("board: load timezone %q: %w", cfg.Timezone, err)
	}

	s := &Service{
		fetcher:  fetcher,
		sources:  Sources(cfg.Calendars),
		loc:      loc,
		schedule: cfg.RefreshCron,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.current = model.DisplaySelection{
		Events:      []model.ResolvedEvent{},
		HeaderDate:  agenda.StartOfDay(s.now().In(loc)),
		GeneratedAt: s.now().In(loc),
	}
	return s, nil
}

// Sources turns configured calendars into agenda sources. Calendars
// without a name are identified by their position.
func Sources(calendars []config.CalendarConfig) []agenda.Source {
	out := make([]agenda.Source, 0, len(calendars))
	for i, c := range calendars {
		id := c.Name
		if id == "" {
			id = "calendar-" + strconv.Itoa(i+1)
		}
		out = append(out, agenda.Source{
			ID:    id,
			Name:  c.Name,
			URL:   c.URL,
			Color: c.Color,
		})
	}
	return out
}

// Current returns the latest selection and whether a pass has completed.
func (s *Service) Current() (model.DisplaySelection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.refreshed
}

// Refresh runs one full pass and publishes its result. A calendar that
// fails to fetch or parse is logged and left out; the pass itself only
// fails when ctx is cancelled.
func (s *Service) Refresh(ctx context.Context) (model.DisplaySelection, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	now := s.now().In(s.loc)
	today := agenda.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	fetchSources := make([]ics.Source, len(s.sources))
	for i, src := range s.sources {
		fetchSources[i] = ics.Source{ID: src.ID, URL: src.URL}
	}
	results := s.fetcher.FetchAll(ctx, fetchSources)
	if err := ctx.Err(); err != nil {
		return model.DisplaySelection{}, err
	}

	calendars := make([]agenda.Calendar, 0, len(s.sources))
	for i, src := range s.sources {
		calendars = append(calendars, s.load(src, resultAt(results, i), today, tomorrow))
	}

	sel := agenda.Resolve(calendars, now)

	s.mu.Lock()
	s.current = sel
	s.refreshed = true
	s.mu.Unlock()

	metrics.RefreshTotal.WithLabelValues(headerOutcome(sel)).Inc()
	metrics.DisplayedEvents.Set(float64(len(sel.Events)))
	metrics.RefreshDuration.Observe(time.Since(started).Seconds())

	appLog.Info("board refreshed",
		"header", sel.HeaderDate.Format(time.DateOnly),
		"label", sel.HeaderLabel(),
		"events", len(sel.Events),
		"calendars", len(s.sources),
		"took", time.Since(started).String(),
	)

	if s.snapshot != nil {
		if err := s.snapshot.Snapshot(ctx); err != nil {
			appLog.Error("board snapshot failed", err)
		}
	}

	return sel, nil
}

// load turns one fetch result into a calendar bundle for this pass.
func (s *Service) load(src agenda.Source, res ics.FetchResult, today, tomorrow time.Time) agenda.Calendar {
	if res.Err != nil {
		metrics.CalendarFailures.WithLabelValues("fetch").Inc()
		return agenda.Failed(src, res.Err)
	}

	events, err := ics.ParseICS(res.Source, res.Body, s.loc)
	if err != nil {
		metrics.CalendarFailures.WithLabelValues("parse").Inc()
		appLog.Error("calendar parse failed", err, "calendar", src.ID, "from_cache", res.FromCache)
		return agenda.Failed(src, err)
	}

	return agenda.Prepare(src, ics.RawEvents(events), today, tomorrow)
}

func resultAt(results []ics.FetchResult, i int) ics.FetchResult {
	if i < len(results) {
		return results[i]
	}
	return ics.FetchResult{Err: errors.New("no fetch result")}
}

func headerOutcome(sel model.DisplaySelection) string {
	switch {
	case len(sel.Events) == 0:
		return "empty"
	case sel.Tomorrow:
		return "tomorrow"
	default:
		return "today"
	}
}

// Run refreshes once immediately and then on the configured cron schedule
// (evaluated in the display timezone) until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("board: invalid refresh schedule %q: %w", s.schedule, err)
	}

	if _, err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
		appLog.Error("initial refresh failed", err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", s.schedule, "timezone", s.loc.String())

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}
