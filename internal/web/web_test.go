package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/config"
	"statusboard/internal/model"
)

type fakeBoard struct {
	sel        model.DisplaySelection
	ready      bool
	refreshErr error
	refreshes  int
}

func (b *fakeBoard) Current() (model.DisplaySelection, bool) { return b.sel, b.ready }

func (b *fakeBoard) Refresh(context.Context) (model.DisplaySelection, error) {
	b.refreshes++
	if b.refreshErr != nil {
		return model.DisplaySelection{}, b.refreshErr
	}
	b.ready = true
	return b.sel, nil
}

func sampleSelection(t *testing.T) model.DisplaySelection {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	day := time.Date(2024, time.January, 9, 0, 0, 0, 0, loc)
	return model.DisplaySelection{
		HeaderDate:  day,
		Tomorrow:    true,
		GeneratedAt: time.Date(2024, time.January, 8, 21, 0, 0, 0, loc),
		Events: []model.ResolvedEvent{
			{
				UID:           "holiday@example.com",
				Summary:       "Holiday",
				Color:         "green",
				AllDay:        true,
				InstanceStart: day,
				InstanceEnd:   day.AddDate(0, 0, 1),
			},
			{
				UID:           "review@example.com",
				Summary:       "Design review",
				Location:      "Room 4",
				Color:         "#1e88e5",
				InstanceStart: day.Add(15 * time.Hour),
				InstanceEnd:   day.Add(16 * time.Hour),
			},
		},
	}
}

func serve(t *testing.T, cfg *config.Config, b Board, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(cfg, b).Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := serve(t, config.DefaultConfig(), &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAgendaNotReady(t *testing.T) {
	rec := serve(t, config.DefaultConfig(), &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/api/agenda", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"agenda not ready"}`, rec.Body.String())
}

func TestAgendaJSON(t *testing.T) {
	b := &fakeBoard{sel: sampleSelection(t), ready: true}
	rec := serve(t, config.DefaultConfig(), b, httptest.NewRequest(http.MethodGet, "/api/agenda", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var got struct {
		HeaderDate  string `json:"header_date"`
		HeaderLabel string `json:"header_label"`
		Timezone    string `json:"timezone"`
		Events      []struct {
			UID      string `json:"uid"`
			Summary  string `json:"summary"`
			Location string `json:"location"`
			Color    string `json:"color"`
			AllDay   bool   `json:"all_day"`
			Start    string `json:"start"`
			End      string `json:"end"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))

	assert.Equal(t, "2024-01-09", got.HeaderDate)
	assert.Equal(t, "Tomorrow", got.HeaderLabel)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	require.Len(t, got.Events, 2)
	assert.True(t, got.Events[0].AllDay)
	assert.Equal(t, "Design review", got.Events[1].Summary)
	assert.Equal(t, "Room 4", got.Events[1].Location)
	assert.Equal(t, "#1e88e5", got.Events[1].Color)
	assert.Equal(t, "2024-01-09T15:00:00+01:00", got.Events[1].Start)
	assert.Equal(t, "2024-01-09T16:00:00+01:00", got.Events[1].End)
}

func TestRefreshEndpoint(t *testing.T) {
	b := &fakeBoard{sel: sampleSelection(t)}
	rec := serve(t, config.DefaultConfig(), b, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, b.refreshes)
	assert.Contains(t, rec.Body.String(), `"header_label":"Tomorrow"`)

	b.refreshErr = errors.New("boom")
	rec = serve(t, config.DefaultConfig(), b, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(t, config.DefaultConfig(), b, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, b.refreshes)
}

func TestBoardPageIsEmbedded(t *testing.T) {
	rec := serve(t, config.DefaultConfig(), &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="board"`)
	assert.Contains(t, rec.Body.String(), "data-ready")
}

func TestUnknownAPIPathIsJSON404(t *testing.T) {
	rec := serve(t, config.DefaultConfig(), &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestMetricsExposed(t *testing.T) {
	rec := serve(t, config.DefaultConfig(), &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPreview(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Snapshot.Output = filepath.Join(t.TempDir(), "preview.png")

	rec := serve(t, cfg, &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "disabled")

	cfg.Snapshot.Enabled = true
	rec = serve(t, cfg, &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "not captured yet")

	png := "\x89PNG\r\n\x1a\nfake"
	require.NoError(t, os.WriteFile(cfg.Snapshot.Output, []byte(png), 0o644))
	rec = serve(t, cfg, &fakeBoard{}, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, png, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = config.BasicAuthConfig{Username: "admin", Password: "hunter2"}
	b := &fakeBoard{sel: sampleSelection(t), ready: true}

	rec := serve(t, cfg, b, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, cfg, b, httptest.NewRequest(http.MethodGet, "/api/agenda", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("WWW-Authenticate"), "Basic"))

	req := httptest.NewRequest(http.MethodGet, "/api/agenda", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = serve(t, cfg, b, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/agenda", nil)
	req.SetBasicAuth("admin", "hunter2")
	rec = serve(t, cfg, b, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewAgendaEmptySelection(t *testing.T) {
	day := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	agenda := NewAgenda(model.DisplaySelection{HeaderDate: day})

	assert.Equal(t, "Today", agenda.HeaderLabel)
	assert.NotNil(t, agenda.Events)
	assert.Empty(t, agenda.Events)

	data, err := json.Marshal(agenda)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"events":[]`)
}

func TestServeAcceptsRequestsOnBoundListener(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"

	ln, err := Listen(cfg)
	require.NoError(t, err)
	addr := ln.Addr().String()

	// A client may connect before Serve starts; the bound socket queues it.
	type result struct {
		code int
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			got <- result{err: err}
			return
		}
		resp.Body.Close()
		got <- result{code: resp.StatusCode}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, cfg, &fakeBoard{}) }()

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.code)
	case <-time.After(5 * time.Second):
		t.Fatal("request to bound listener timed out")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestListenRejectsBadAddress(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Listen = "not-an-address"

	_, err := Listen(cfg)
	assert.Error(t, err)
}
