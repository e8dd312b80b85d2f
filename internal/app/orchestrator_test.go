package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raysh454/offerlens/internal/extractor"
	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	"github.com/raysh454/offerlens/internal/sink"
	"github.com/raysh454/offerlens/internal/source"
	"github.com/raysh454/offerlens/internal/testutil"
)

type testEnv struct {
	orch   *Orchestrator
	sink   *testutil.RecordingSink
	src    *testutil.DummySource
	logger *testutil.DummyLogger
}

// newTestOrchestrator wires a seeded extractor, a dummy ClickBank source and
// a recording sink. Batch pauses are skipped.
func newTestOrchestrator(t *testing.T) *testEnv {
	t.Helper()

	logger := &testutil.DummyLogger{}
	rec := &testutil.RecordingSink{}
	src := &testutil.DummySource{Products: map[string]source.RawProduct{
		"ketoplan": {
			source.FieldName:        "Keto Diet Blueprint",
			source.FieldVendor:      "ketoplan",
			source.FieldGravity:     45.0,
			source.FieldCommission:  60.0,
			source.FieldRefundRate:  0.05,
			source.FieldAvgEarnings: 30.0,
		},
	}}

	cfg := DefaultConfig()
	cfg.StorageRoot = ""
	cfg.BatchDelay = 0
	cfg.JobRetentionTime = 5 * time.Second

	comps := &Components{
		Extractor: extractor.New(
			extractor.WithRand(rand.New(rand.NewSource(7))),
			extractor.WithSource(network.ClickBank, src),
			extractor.WithLogger(logger),
		),
		Sinks: sink.Multi{rec},
	}

	orch := NewOrchestrator(cfg, comps, logger)
	t.Cleanup(func() { orch.Close() })
	return &testEnv{orch: orch, sink: rec, src: src, logger: logger}
}

func jvzooURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://www.jvzoo.com/c/100/%d", i+1)
	}
	return urls
}

func drainEvents(t *testing.T, ch <-chan JobEvent) []JobEvent {
	t.Helper()
	var evs []JobEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return evs
			}
			evs = append(evs, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for job events, got %d so far", len(evs))
		}
	}
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewOrchestrator_DefaultConfig(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(nil, nil, nil)
	defer o.Close()
	if o.cfg == nil {
		t.Fatal("expected default config when nil passed")
	}
	if got := len(o.Networks()); got != 4 {
		t.Errorf("expected 4 networks, got %d", got)
	}
}

// ─── ValidateOffer ─────────────────────────────────────────────────────

func TestValidateOffer_LiveClickBank(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	res, err := env.orch.ValidateOffer(context.Background(), "https://ketoplan.hop.clickbank.net/")
	if err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}

	if res.ID == "" || res.Timestamp.IsZero() || res.ResponseTimeMS < 0 {
		t.Errorf("missing bookkeeping fields: %+v", res)
	}
	if res.Network != "ClickBank" || res.ProductInfo.Network != "clickbank" {
		t.Errorf("network = %q / %q", res.Network, res.ProductInfo.Network)
	}
	if res.ProductInfo.Source != model.SourceLive || res.ProductInfo.Name != "Keto Diet Blueprint" {
		t.Errorf("unexpected product info: %+v", res.ProductInfo)
	}
	if !res.Validation.Passed || len(res.Validation.Checks) != 4 {
		t.Errorf("unexpected outcome: %+v", res.Validation)
	}
	if res.Score.Overall != 100 || res.Score.Grade != "A+" || res.Score.Recommendation.Action != "Highly Recommended" {
		t.Errorf("unexpected score: %+v", res.Score)
	}

	results, errs := env.sink.Snapshot()
	if len(results) != 1 || results[0].ID != res.ID || len(errs) != 0 {
		t.Errorf("sink got %d results, %d errors", len(results), len(errs))
	}
}

func TestValidateOffer_SyntheticNetwork(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	res, err := env.orch.ValidateOffer(context.Background(), "https://shareasale.com/r.cfm/offer-42")
	if err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}
	if res.Network != "ShareASale" || res.ProductInfo.Source != model.SourceSynthetic {
		t.Errorf("unexpected result: network=%q source=%q", res.Network, res.ProductInfo.Source)
	}
	if res.Score.Overall < 0 || res.Score.Overall > 100 {
		t.Errorf("score out of range: %d", res.Score.Overall)
	}
}

func TestValidateOffer_ErrorsAreReturnedAndPublished(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()

	cases := []struct {
		url   string
		check func(error) bool
	}{
		{"https://www.example.com/offer", func(err error) bool { return errors.Is(err, network.ErrNetworkNotSupported) }},
		{"https://www.amazon.com/gp/product/nothing", func(err error) bool { return errors.Is(err, extractor.ErrInvalidProductURL) }},
		{"not a url", func(err error) bool { var pe *network.ParseError; return errors.As(err, &pe) }},
		{"https://missing.hop.clickbank.net/", func(err error) bool { var fe *source.FetchError; return errors.As(err, &fe) }},
	}

	for _, tc := range cases {
		res, err := env.orch.ValidateOffer(ctx, tc.url)
		if res != nil || !tc.check(err) {
			t.Errorf("ValidateOffer(%q) = %v, %v", tc.url, res, err)
		}
	}

	results, errs := env.sink.Snapshot()
	if len(results) != 0 || len(errs) != len(cases) {
		t.Fatalf("sink got %d results, %d errors", len(results), len(errs))
	}
	if errs[0].URL != cases[0].url || errs[0].Error == "" || errs[0].Timestamp.IsZero() {
		t.Errorf("unexpected error record: %+v", errs[0])
	}
}

func TestValidateOffer_LiveFailureDoesNotSynthesize(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.src.Fail = map[string]bool{"ketoplan": true}

	_, err := env.orch.ValidateOffer(context.Background(), "https://ketoplan.hop.clickbank.net/")
	var fe *source.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != 503 {
		t.Fatalf("expected FetchError 503, got %v", err)
	}
}

func TestValidateOffer_SinkFailureIsOnlyLogged(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.sink.Err = errors.New("broker down")

	if _, err := env.orch.ValidateOffer(context.Background(), "https://www.jvzoo.com/c/1/2"); err != nil {
		t.Fatalf("sink failure must not fail validation: %v", err)
	}
	if !env.logger.Logged("publish result failed") {
		t.Error("expected sink failure to be logged")
	}
}

func TestValidateOffer_CacheIsLastWriteWins(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()

	first, _ := env.orch.ValidateOffer(ctx, "https://www.jvzoo.com/c/1/2")
	second, _ := env.orch.ValidateOffer(ctx, "https://WWW.JVZOO.com/c/1/2/?utm_source=mail")

	hist, err := env.orch.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != second.ID || hist[0].ID == first.ID {
		t.Fatalf("expected only the latest result, got %d entries", len(hist))
	}
}

func TestValidate_ReportsChangeOnRevalidation(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()
	u := "https://ketoplan.hop.clickbank.net/"

	if _, change, err := env.orch.validate(ctx, u); err != nil || change != nil {
		t.Fatalf("first validation: change=%v err=%v", change, err)
	}

	env.src.Products["ketoplan"][source.FieldCommission] = 40.0
	res, change, err := env.orch.validate(ctx, u)
	if err != nil {
		t.Fatalf("second validation: %v", err)
	}
	if change == nil {
		t.Fatal("expected a change")
	}
	// (0.25*0.8 + 0.15 + 0.20 + 0.20) / 0.80 = 0.9375
	if res.Score.Overall != 94 || change.Delta != -6 || change.BaseScore != 100 {
		t.Errorf("unexpected change: %+v", change)
	}
	if res.Validation.Passed {
		t.Error("commission below minimum must fail validation")
	}
	if len(change.MetricDeltas) != 1 || change.MetricDeltas[0].Metric != model.MetricCommission {
		t.Errorf("unexpected metric deltas: %+v", change.MetricDeltas)
	}
	if !env.logger.Logged("offer changed since last validation") {
		t.Error("expected change to be logged")
	}
}

// ─── ValidateBulk ──────────────────────────────────────────────────────

func TestValidateBulk_BatchesPausesAndInlineErrors(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.orch.cfg.BatchDelay = time.Second

	var (
		mu           sync.Mutex
		pauses       []time.Duration
		doneAtPauses []int
	)
	env.orch.sleep = func(_ context.Context, d time.Duration) error {
		results, errs := env.sink.Snapshot()
		mu.Lock()
		pauses = append(pauses, d)
		doneAtPauses = append(doneAtPauses, len(results)+len(errs))
		mu.Unlock()
		return nil
	}

	urls := jvzooURLs(12)
	urls[6] = "https://www.example.com/offer/7"

	var reports []BatchReport
	items, abortErr := env.orch.validateBulk(context.Background(), urls, 5, func(r BatchReport) {
		reports = append(reports, r)
	})
	if abortErr != nil {
		t.Fatalf("unexpected abort: %v", abortErr)
	}

	if len(items) != 12 {
		t.Fatalf("expected 12 items, got %d", len(items))
	}
	for i, it := range items {
		if it.URL != urls[i] {
			t.Errorf("item %d url = %q, want %q", i, it.URL, urls[i])
		}
		if i == 6 {
			if !it.Failed() || it.Result != nil || !strings.Contains(it.Error, "not supported") {
				t.Errorf("item 6 should be an inline error, got %+v", it)
			}
			continue
		}
		if it.Failed() || it.Result == nil {
			t.Errorf("item %d should have a result, got error %q", i, it.Error)
		}
	}

	if len(pauses) != 2 || pauses[0] != time.Second || pauses[1] != time.Second {
		t.Errorf("expected two 1s pauses, got %v", pauses)
	}
	if len(doneAtPauses) != 2 || doneAtPauses[0] != 5 || doneAtPauses[1] != 10 {
		t.Errorf("pauses must sit between whole batches, got %v", doneAtPauses)
	}

	wantSizes := []int{5, 5, 2}
	if len(reports) != 3 {
		t.Fatalf("expected 3 batch reports, got %d", len(reports))
	}
	for i, r := range reports {
		if len(r.Items) != wantSizes[i] || r.Batch != i+1 || r.Total != 12 {
			t.Errorf("report %d = batch %d, %d items", i, r.Batch, len(r.Items))
		}
	}
}

func TestValidateBulk_SingleBatchNeverPauses(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	paused := false
	env.orch.sleep = func(context.Context, time.Duration) error {
		paused = true
		return nil
	}

	items := env.orch.ValidateBulk(context.Background(), jvzooURLs(5), 0)
	if len(items) != 5 || paused {
		t.Errorf("items=%d paused=%v", len(items), paused)
	}
}

func TestValidateBulk_CancelDuringPauseFailsRemaining(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.orch.sleep = func(context.Context, time.Duration) error {
		return context.Canceled
	}

	items := env.orch.ValidateBulk(context.Background(), jvzooURLs(8), 5)
	for i, it := range items {
		if i < 5 && it.Failed() {
			t.Errorf("item %d of the first batch failed: %s", i, it.Error)
		}
		if i >= 5 && (!it.Failed() || !strings.Contains(it.Error, "aborted")) {
			t.Errorf("item %d should be aborted, got %+v", i, it)
		}
	}
}

func TestValidateBulk_Empty(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	if items := env.orch.ValidateBulk(context.Background(), nil, 5); len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

// ─── History / Export ──────────────────────────────────────────────────

func TestExport_CSVAndUnsupported(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()

	env.orch.ValidateBulk(ctx, jvzooURLs(3), 5)

	out, err := env.orch.Export(ctx, "csv")
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	lines := strings.Split(string(out), "\n")
	if len(lines) != 4 || lines[0] != history.CSVHeader {
		t.Errorf("unexpected csv:\n%s", out)
	}

	if _, err := env.orch.Export(ctx, "xml"); !errors.Is(err, history.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestHistory_UsesStoreWhenConfigured(t *testing.T) {
	t.Parallel()
	store, err := history.OpenSQLiteStore(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	o := NewOrchestrator(cfg, &Components{
		Extractor: extractor.New(extractor.WithRand(rand.New(rand.NewSource(1)))),
		Sinks:     sink.Multi{sink.NewStore(store)},
		Store:     store,
	}, &testutil.DummyLogger{})
	defer o.Close()

	ctx := context.Background()
	u := "https://www.jvzoo.com/c/9/9"
	if _, err := o.ValidateOffer(ctx, u); err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}

	// A fresh cache still finds the stored result as the comparison base.
	o.cache.Clear()
	if _, change, err := o.validate(ctx, u); err != nil || change == nil {
		t.Fatalf("expected change against stored result, change=%v err=%v", change, err)
	}

	hist, err := o.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 2 {
		t.Errorf("expected 2 stored results, got %d", len(hist))
	}
}

func TestValidate_ChangeSurvivesRestartAcrossTrackingParams(t *testing.T) {
	t.Parallel()
	store, err := history.OpenSQLiteStore(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	src := &testutil.DummySource{Products: map[string]source.RawProduct{
		"ketoplan": {
			source.FieldName:        "Keto Diet Blueprint",
			source.FieldGravity:     45.0,
			source.FieldCommission:  60.0,
			source.FieldRefundRate:  0.05,
			source.FieldAvgEarnings: 30.0,
		},
	}}
	newOrch := func() *Orchestrator {
		cfg := DefaultConfig()
		cfg.StorageRoot = ""
		return NewOrchestrator(cfg, &Components{
			Extractor: extractor.New(extractor.WithSource(network.ClickBank, src)),
			Sinks:     sink.Multi{sink.NewStore(store)},
			Store:     store,
		}, &testutil.DummyLogger{})
	}
	ctx := context.Background()

	before := newOrch()
	if _, err := before.ValidateOffer(ctx, "https://ketoplan.hop.clickbank.net/?utm_source=a"); err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}

	src.Products["ketoplan"][source.FieldCommission] = 40.0
	after := newOrch()
	_, change, err := after.validate(ctx, "https://ketoplan.hop.clickbank.net/?utm_source=c")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if change == nil || change.BaseScore != 100 || change.Delta != -6 {
		t.Fatalf("expected a change against the stored result, got %+v", change)
	}

	hist, err := after.OfferHistory(ctx, "https://ketoplan.hop.clickbank.net/", 0)
	if err != nil || len(hist) != 2 {
		t.Fatalf("OfferHistory = %d, %v", len(hist), err)
	}
}

func TestOfferHistoryAndErrors_WithoutStore(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := env.orch.ValidateOffer(ctx, "https://ketoplan.hop.clickbank.net/?utm_source=x"); err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}
	_, _ = env.orch.ValidateOffer(ctx, "https://www.example.com/nope")

	hist, err := env.orch.OfferHistory(ctx, "https://ketoplan.hop.clickbank.net/", 10)
	if err != nil || len(hist) != 1 {
		t.Errorf("expected the cached result, got %d, %v", len(hist), err)
	}
	if hist, _ = env.orch.OfferHistory(ctx, "https://www.jvzoo.com/c/1/1", 10); len(hist) != 0 {
		t.Errorf("expected nothing for an unseen offer, got %d", len(hist))
	}

	recs, err := env.orch.Errors(ctx, 10)
	if err != nil || recs == nil || len(recs) != 0 {
		t.Errorf("expected an empty error list without a store, got %v, %v", recs, err)
	}
}

func TestErrors_ReadsStore(t *testing.T) {
	t.Parallel()
	store, err := history.OpenSQLiteStore(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	o := NewOrchestrator(DefaultConfig(), &Components{
		Extractor: extractor.New(),
		Sinks:     sink.Multi{sink.NewStore(store)},
		Store:     store,
	}, &testutil.DummyLogger{})
	defer o.Close()

	ctx := context.Background()
	_, _ = o.ValidateOffer(ctx, "https://www.example.com/nope")
	recs, err := o.Errors(ctx, 10)
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(recs) != 1 || recs[0].URL != "https://www.example.com/nope" || !strings.Contains(recs[0].Error, "not supported") {
		t.Errorf("unexpected error records: %+v", recs)
	}
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func TestGetJob_ReturnsNilForUnknown(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	if j := env.orch.GetJob("nonexistent"); j != nil {
		t.Errorf("expected nil for unknown job, got %+v", j)
	}
}

func TestListJobs_EmptyInitially(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	if jobs := env.orch.ListJobs(); len(jobs) != 0 {
		t.Errorf("expected 0 jobs, got %d", len(jobs))
	}
}

func TestCancelJob_ReportsUnknown(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	if env.orch.CancelJob("nonexistent") {
		t.Error("expected false for an unknown job")
	}
}

func TestCancelJob_FinishedJobStaysDone(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	job, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(2), 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	drainEvents(t, job.Events)

	if !env.orch.CancelJob(job.ID) {
		t.Error("expected true for a known job")
	}
	if got := env.orch.GetJob(job.ID).Status; got != JobDone {
		t.Errorf("expected done, got %s", got)
	}
}

// cancelingSource cancels a context while serving the product, as a client
// hanging up during the final batch would.
type cancelingSource struct {
	cancel  context.CancelFunc
	product source.RawProduct
}

func (s *cancelingSource) FetchProduct(context.Context, string) (source.RawProduct, error) {
	s.cancel()
	return s.product, nil
}

func TestStartBulkJob_CancelAfterLastBatchIsDone(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancelingSource{cancel: cancel, product: source.RawProduct{
		source.FieldName:       "Keto Diet Blueprint",
		source.FieldCommission: 60.0,
	}}
	cfg := DefaultConfig()
	cfg.StorageRoot = ""
	cfg.BatchDelay = 0
	o := NewOrchestrator(cfg, &Components{
		Extractor: extractor.New(extractor.WithSource(network.ClickBank, src)),
	}, &testutil.DummyLogger{})
	defer o.Close()

	job, err := o.StartBulkJob(ctx, []string{"https://ketoplan.hop.clickbank.net/"}, 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	evs := drainEvents(t, job.Events)

	last := evs[len(evs)-1]
	if last.Type != JobEventResult || last.Status != JobDone {
		t.Fatalf("expected a result event last, got %+v", last)
	}
	final := o.GetJob(job.ID)
	if final.Status != JobDone || final.Error != "" || len(final.Results) != 1 || final.Results[0].Failed() {
		t.Errorf("every URL finished, job must be done: %+v", final)
	}
}

func TestStartBulkJob_EmitsEventsAndCompletes(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	job, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(7), 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	if job.Status != JobPending || job.Total != 7 || job.BatchSize != 5 {
		t.Errorf("unexpected initial job: %+v", job)
	}

	evs := drainEvents(t, job.Events)

	var types []JobEventType
	for _, ev := range evs {
		types = append(types, ev.Type)
	}
	want := []JobEventType{JobEventStatus, JobEventStatus, JobEventProgress, JobEventProgress, JobEventResult}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	if evs[0].Status != JobPending || evs[1].Status != JobRunning || evs[4].Status != JobDone {
		t.Errorf("unexpected status sequence: %+v", evs)
	}
	if evs[2].Processed != 5 || len(evs[2].Items) != 5 || evs[3].Processed != 7 || len(evs[3].Items) != 2 {
		t.Errorf("unexpected progress events: %+v %+v", evs[2], evs[3])
	}

	final := env.orch.GetJob(job.ID)
	if final.Status != JobDone || len(final.Results) != 7 || final.Processed != 7 || final.EndedAt.IsZero() {
		t.Errorf("unexpected final job: %+v", final)
	}
}

func TestStartBulkJob_ProgressCarriesChanges(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	ctx := context.Background()
	u := "https://ketoplan.hop.clickbank.net/"

	if _, err := env.orch.ValidateOffer(ctx, u); err != nil {
		t.Fatalf("ValidateOffer: %v", err)
	}
	env.src.Products["ketoplan"][source.FieldGravity] = 10.0

	job, err := env.orch.StartBulkJob(ctx, []string{u}, 1)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	var changes []*history.Change
	for _, ev := range drainEvents(t, job.Events) {
		changes = append(changes, ev.Changes...)
	}
	if len(changes) != 1 || changes[0].URL != u || changes[0].Delta >= 0 {
		t.Errorf("expected one negative change for %s, got %+v", u, changes)
	}
}

func TestStartBulkJob_RejectsEmptyAndClosed(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	if _, err := env.orch.StartBulkJob(context.Background(), []string{" ", ""}, 5); !errors.Is(err, ErrNoURLs) {
		t.Errorf("expected ErrNoURLs, got %v", err)
	}

	env.orch.Close()
	if _, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(1), 5); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func waitForProgress(t *testing.T, ch <-chan JobEvent) []JobEvent {
	t.Helper()
	var seen []JobEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("events closed before first progress event")
			}
			seen = append(seen, ev)
			if ev.Type == JobEventProgress {
				return seen
			}
		case <-timeout:
			t.Fatal("timed out waiting for progress")
		}
	}
}

func TestStartBulkJob_CancelJobTransitionsToCanceled(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.orch.cfg.BatchDelay = time.Hour

	job, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(6), 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	waitForProgress(t, job.Events)
	env.orch.CancelJob(job.ID)

	evs := drainEvents(t, job.Events)
	last := evs[len(evs)-1]
	if last.Type != JobEventStatus || last.Status != JobCanceled {
		t.Fatalf("expected canceled status last, got %+v", last)
	}

	final := env.orch.GetJob(job.ID)
	if final.Status != JobCanceled || len(final.Results) != 6 {
		t.Fatalf("unexpected final job: %+v", final)
	}
	if final.Results[0].Failed() || !final.Results[5].Failed() {
		t.Errorf("expected first batch done and the rest aborted: %+v", final.Results)
	}
}

func TestClose_CancelsRunningJobs(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	env.orch.cfg.BatchDelay = time.Hour

	job, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(6), 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	waitForProgress(t, job.Events)

	if err := env.orch.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	drainEvents(t, job.Events)
	if got := env.orch.GetJob(job.ID).Status; got != JobCanceled {
		t.Errorf("expected canceled after Close, got %s", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)
	if err := env.orch.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := env.orch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestListJobs_PrunesExpired(t *testing.T) {
	t.Parallel()
	env := newTestOrchestrator(t)

	job, err := env.orch.StartBulkJob(context.Background(), jvzooURLs(2), 5)
	if err != nil {
		t.Fatalf("StartBulkJob: %v", err)
	}
	drainEvents(t, job.Events)

	jobs := env.orch.ListJobs()
	if len(jobs) != 1 || jobs[0].ID != job.ID || jobs[0].Results != nil {
		t.Fatalf("expected the finished job without results, got %+v", jobs)
	}

	later := time.Now().Add(time.Minute)
	env.orch.now = func() time.Time { return later }
	if jobs := env.orch.ListJobs(); len(jobs) != 0 {
		t.Errorf("expected expired job to be pruned, got %d", len(jobs))
	}
}
