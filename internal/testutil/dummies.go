// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/source"
	"github.com/raysh454/offerlens/internal/webclient"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// Logged reports whether msg was recorded at any level.
func (l *DummyLogger) Logged(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, bucket := range [][]string{l.Debugs, l.Infos, l.Warns, l.Errors} {
		for _, m := range bucket {
			if m == msg {
				return true
			}
		}
	}
	return false
}

// ─── WebClient ─────────────────────────────────────────────────────────

// DummyWebClient implements webclient.WebClient.
// Bodies[url] is served with status 200; unknown URLs get 404.
// Set FailURLs[url] = true to force a transport error for a specific URL.
type DummyWebClient struct {
	ResponseDelay time.Duration
	Bodies        map[string]string
	FailURLs      map[string]bool
	mu            sync.Mutex
	Requests      []*webclient.Request
}

func (d *DummyWebClient) Do(ctx context.Context, req *webclient.Request) (*webclient.Response, error) {
	if req == nil {
		return nil, webclient.ErrNilRequest
	}
	if d.ResponseDelay > 0 {
		select {
		case <-time.After(d.ResponseDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	d.mu.Lock()
	d.Requests = append(d.Requests, req)
	d.mu.Unlock()

	if d.FailURLs != nil && d.FailURLs[req.URL] {
		return nil, &errString{"dummy fetch fail for " + req.URL}
	}

	body, ok := d.Bodies[req.URL]
	status := 200
	if !ok {
		status = 404
	}
	return &webclient.Response{
		Request:    req,
		Body:       []byte(body),
		StatusCode: status,
		FetchedAt:  time.Now(),
	}, nil
}

func (d *DummyWebClient) Get(ctx context.Context, url string) (*webclient.Response, error) {
	return d.Do(ctx, &webclient.Request{Method: "GET", URL: url})
}

func (d *DummyWebClient) Close() error { return nil }

// ─── Source ────────────────────────────────────────────────────────────

// DummySource implements source.Source from an in-memory product table.
// Unknown ids, or ids listed in Fail, return a *source.FetchError.
type DummySource struct {
	Products map[string]source.RawProduct
	Fail     map[string]bool

	mu    sync.Mutex
	Calls []string
}

func (s *DummySource) FetchProduct(_ context.Context, id string) (source.RawProduct, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, id)
	s.mu.Unlock()

	if s.Fail[id] {
		return nil, &source.FetchError{Source: "dummy", ProductID: id, StatusCode: 503, Err: source.ErrUnexpectedStatus}
	}
	p, ok := s.Products[id]
	if !ok {
		return nil, &source.FetchError{Source: "dummy", ProductID: id, StatusCode: 404, Err: source.ErrUnexpectedStatus}
	}
	return p, nil
}

// ─── Sink ──────────────────────────────────────────────────────────────

// RecordingSink implements sink.Sink and keeps everything it receives.
// A non-nil Err is returned from every call after recording.
type RecordingSink struct {
	Err error

	mu      sync.Mutex
	Results []*model.ValidationResult
	Errors  []model.ErrorRecord
}

func (s *RecordingSink) Publish(_ context.Context, r *model.ValidationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, r)
	return s.Err
}

func (s *RecordingSink) PublishError(_ context.Context, rec model.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, rec)
	return s.Err
}

// Snapshot returns copies of what has been recorded so far.
func (s *RecordingSink) Snapshot() ([]*model.ValidationResult, []model.ErrorRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.ValidationResult(nil), s.Results...), append([]model.ErrorRecord(nil), s.Errors...)
}

type errString struct{ s string }

func (e *errString) Error() string { return e.s }
