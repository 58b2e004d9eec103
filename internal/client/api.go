// Calsync - Shared Calendar Backend with Realtime Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/calsync

package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/calsync/internal/logging"
	"github.com/tomtom215/calsync/internal/metrics"
	"github.com/tomtom215/calsync/internal/models"
)

// Defaults for APIConfig.
const (
	DefaultTimeout          = 10 * time.Second
	DefaultRequestsPerSec   = 20
	DefaultBurst            = 10
	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	maxResponseBytes        = 8 << 20
)

// APIConfig configures an API client. Zero values use the defaults.
type APIConfig struct {
	// BaseURL is the server root, e.g. http://localhost:3000. Paths are
	// appended as /api/...
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	HTTPClient     *http.Client
}

// API is a typed client for the calendar REST routes. Safe for
// concurrent use.
type API struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*rawResponse]
}

type rawResponse struct {
	status int
	body   []byte
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

// NewAPI creates a client for cfg.BaseURL.
func NewAPI(cfg APIConfig) *API {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = DefaultRequestsPerSec
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &API{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		breaker: newAPIBreaker("calsync-api"),
	}
}

// newAPIBreaker opens after consecutive transport failures. Server
// responses of any status count as successes.
func newAPIBreaker(name string) *gobreaker.CircuitBreaker[*rawResponse] {
	metrics.RecordBreakerState(name, gobreaker.StateClosed.String())
	return gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerState(name, to.String())
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})
}

// do sends one request and decodes the envelope's data into out.
func (a *API) do(ctx context.Context, method, path string, body, out interface{}) (string, error) {
	op := method + " " + path

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return "", fmt.Errorf("%s: failed to encode body: %w", op, err)
		}
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", newNetworkError(op, err)
	}

	raw, err := a.breaker.Execute(func() (*rawResponse, error) {
		return a.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) {
			return "", ne
		}
		return "", &NetworkError{Op: op, Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw.body, &env); err != nil {
		if raw.status >= http.StatusBadRequest {
			return "", &ServerError{Status: raw.status, Message: fmt.Sprintf("HTTP %d", raw.status)}
		}
		return "", &NetworkError{Op: op, Err: fmt.Errorf("invalid response body: %w", err)}
	}
	if raw.status < 200 || raw.status > 299 {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", raw.status)
		}
		return "", &ServerError{Status: raw.status, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", &NetworkError{Op: op, Err: fmt.Errorf("invalid response data: %w", err)}
		}
	}
	return env.Message, nil
}

func (a *API) roundTrip(ctx context.Context, method, path string, payload []byte) (*rawResponse, error) {
	op := method + " " + path

	var reader io.Reader = http.NoBody
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, newNetworkError(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, newNetworkError(op, err)
	}
	return &rawResponse{status: resp.StatusCode, body: data}, nil
}

// ListSections returns every section ordered by name.
func (a *API) ListSections(ctx context.Context) ([]models.Section, error) {
	var out []models.Section
	_, err := a.do(ctx, http.MethodGet, "/api/sections", nil, &out)
	return out, err
}

// CreateSection creates a section.
func (a *API) CreateSection(ctx context.Context, in models.SectionInput) (models.Section, error) {
	var out models.Section
	_, err := a.do(ctx, http.MethodPost, "/api/sections", in, &out)
	return out, err
}

// UpdateSection sends a merge-patch. A nil map value clears a nullable
// field.
func (a *API) UpdateSection(ctx context.Context, id string, patch map[string]interface{}) (models.Section, error) {
	var out models.Section
	_, err := a.do(ctx, http.MethodPut, "/api/sections/"+url.PathEscape(id), patch, &out)
	return out, err
}

// DeleteSection deletes a section and its events.
func (a *API) DeleteSection(ctx context.Context, id string) (models.Section, error) {
	var out models.Section
	_, err := a.do(ctx, http.MethodDelete, "/api/sections/"+url.PathEscape(id), nil, &out)
	return out, err
}

// ListEvents returns all events, or one section's when sectionID is set.
func (a *API) ListEvents(ctx context.Context, sectionID string) ([]models.Event, error) {
	path := "/api/events"
	if sectionID != "" {
		path += "?section_id=" + url.QueryEscape(sectionID)
	}
	var out []models.Event
	_, err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListEventsByMonth returns one month's events.
func (a *API) ListEventsByMonth(ctx context.Context, month string) ([]models.Event, error) {
	var out []models.Event
	_, err := a.do(ctx, http.MethodGet, "/api/events/"+url.PathEscape(models.NormalizeMonth(month)), nil, &out)
	return out, err
}

// CreateEvent creates an event.
func (a *API) CreateEvent(ctx context.Context, in models.EventInput) (models.Event, error) {
	var out models.Event
	_, err := a.do(ctx, http.MethodPost, "/api/events", in, &out)
	return out, err
}

// UpdateEvent sends a merge-patch.
func (a *API) UpdateEvent(ctx context.Context, id string, patch map[string]interface{}) (models.Event, error) {
	var out models.Event
	_, err := a.do(ctx, http.MethodPut, "/api/events/"+url.PathEscape(id), patch, &out)
	return out, err
}

// DeleteEvent deletes an event.
func (a *API) DeleteEvent(ctx context.Context, id string) (models.Event, error) {
	var out models.Event
	_, err := a.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, &out)
	return out, err
}

// BulkReplace replaces a month, or one section's share of it.
func (a *API) BulkReplace(ctx context.Context, req models.BulkReplaceRequest) (models.BulkUpdate, error) {
	req.Month = models.NormalizeMonth(req.Month)
	if req.Events == nil {
		req.Events = []models.BulkEvent{}
	}
	var out models.BulkUpdate
	_, err := a.do(ctx, http.MethodPost, "/api/events/bulk", req, &out)
	return out, err
}

// ExportMonth returns the month grouped by section.
func (a *API) ExportMonth(ctx context.Context, month, sectionID string) (models.MonthExport, error) {
	path := "/api/discord/export/" + url.PathEscape(models.NormalizeMonth(month))
	if sectionID != "" {
		path += "?section_id=" + url.QueryEscape(sectionID)
	}
	var out models.MonthExport
	_, err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CalendarView returns the month keyed by date.
func (a *API) CalendarView(ctx context.Context, month string) (models.CalendarView, error) {
	var out models.CalendarView
	_, err := a.do(ctx, http.MethodGet, "/api/calendar/"+url.PathEscape(models.NormalizeMonth(month)), nil, &out)
	return out, err
}

// InitDB seeds an empty server store and returns its row counts.
func (a *API) InitDB(ctx context.Context) (models.StoreStats, error) {
	var out models.StoreStats
	_, err := a.do(ctx, http.MethodPost, "/api/init-db", nil, &out)
	return out, err
}

// CalendarICS returns the month as an iCalendar document.
func (a *API) CalendarICS(ctx context.Context, month string) ([]byte, error) {
	raw, err := a.doRaw(ctx, http.MethodGet, "/api/calendar/"+url.PathEscape(models.NormalizeMonth(month))+"/ics")
	if err != nil {
		return nil, err
	}
	return raw.body, nil
}

// Health is the server's /health body.
type Health struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
	Clients   int       `json:"clients"`
}

// Health fetches /api/health. A degraded server answers 503 with a body,
// which is returned together with a *ServerError.
func (a *API) Health(ctx context.Context) (Health, error) {
	var out Health
	raw, err := a.doRaw(ctx, http.MethodGet, "/api/health")
	if raw != nil {
		if jerr := json.Unmarshal(raw.body, &out); jerr != nil && err == nil {
			err = &NetworkError{Op: "GET /api/health", Err: fmt.Errorf("invalid response body: %w", jerr)}
		}
	}
	return out, err
}

// doRaw sends a body-less request whose response is not enveloped. The
// response is returned alongside a *ServerError for non-2xx statuses.
func (a *API) doRaw(ctx context.Context, method, path string) (*rawResponse, error) {
	op := method + " " + path
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, newNetworkError(op, err)
	}
	raw, err := a.breaker.Execute(func() (*rawResponse, error) {
		return a.roundTrip(ctx, method, path, nil)
	})
	if err != nil {
		var ne *NetworkError
		if errors.As(err, &ne) {
			return nil, ne
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	if raw.status < 200 || raw.status > 299 {
		var env envelope
		msg := fmt.Sprintf("HTTP %d", raw.status)
		if json.Unmarshal(raw.body, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return raw, &ServerError{Status: raw.status, Message: msg}
	}
	return raw, nil
}
