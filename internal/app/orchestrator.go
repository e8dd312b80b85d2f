package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raysh454/offerlens/internal/extractor"
	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/network"
	"github.com/raysh454/offerlens/internal/utils"
	"github.com/raysh454/offerlens/internal/validator"
)

var (
	ErrClosed = errors.New("orchestrator closed")
	ErrNoURLs = errors.New("no urls given")
)

type JobEventType string

const (
	JobEventStatus   JobEventType = "status"
	JobEventProgress JobEventType = "progress"
	JobEventResult   JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For progress, one event per finished batch
	Batch     int               `json:"batch,omitempty"`
	Processed int               `json:"processed,omitempty"`
	Total     int               `json:"total,omitempty"`
	Items     []model.BulkItem  `json:"items,omitempty"`
	Changes   []*history.Change `json:"changes,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

type Job struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"` // "bulk"
	BatchSize int           `json:"batch_size"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Status    JobStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Events    chan JobEvent `json:"-"`

	Results []model.BulkItem `json:"results,omitempty"`
}

// Orchestrator runs identify, extract, evaluate and score for each offer and
// keeps the results cache and job table.
type Orchestrator struct {
	cfg        *Config
	catalog    *network.Catalog
	extractor  *extractor.Extractor
	components *Components
	cache      *history.Cache
	logger     logging.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	closeOnce sync.Once
	closed    bool

	jobsMu     sync.Mutex
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
}

// NewOrchestrator ties together config, components and logger. Nil
// components give the default catalog with synthetic data only.
func NewOrchestrator(cfg *Config, comps *Components, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if comps == nil {
		comps = &Components{}
	}
	if comps.Catalog == nil {
		comps.Catalog = network.DefaultCatalog()
	}
	if comps.Extractor == nil {
		comps.Extractor = extractor.New(extractor.WithLogger(logger))
	}
	return &Orchestrator{
		cfg:        cfg,
		catalog:    comps.Catalog,
		extractor:  comps.Extractor,
		components: comps,
		cache:      history.NewCache(cfg.cacheSize()),
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Networks lists the catalog in matching order.
func (o *Orchestrator) Networks() []network.RuleSet {
	return o.catalog.All()
}

// ValidateOffer identifies, extracts, evaluates and scores one URL. The
// result is cached and published; a failure is published as an error record
// and returned unchanged.
func (o *Orchestrator) ValidateOffer(ctx context.Context, rawURL string) (*model.ValidationResult, error) {
	res, _, err := o.validate(ctx, rawURL)
	return res, err
}

func (o *Orchestrator) validate(ctx context.Context, rawURL string) (*model.ValidationResult, *history.Change, error) {
	start := o.now()

	res, err := o.evaluate(ctx, rawURL, start)
	if err != nil {
		o.logger.Warn("offer validation failed",
			logging.Field{Key: "url", Value: rawURL},
			logging.Field{Key: "error", Value: err.Error()})
		o.publishError(ctx, model.ErrorRecord{URL: rawURL, Error: err.Error(), Timestamp: o.now().UTC()})
		return nil, nil, err
	}

	change := o.record(ctx, res)
	o.publish(ctx, res)

	o.logger.Info("offer validated",
		logging.Field{Key: "url", Value: res.URL},
		logging.Field{Key: "network", Value: res.Network},
		logging.Field{Key: "score", Value: res.Score.Overall},
		logging.Field{Key: "grade", Value: res.Score.Grade},
		logging.Field{Key: "passed", Value: res.Validation.Passed},
		logging.Field{Key: "response_ms", Value: res.ResponseTimeMS})
	return res, change, nil
}

func (o *Orchestrator) evaluate(ctx context.Context, rawURL string, start time.Time) (*model.ValidationResult, error) {
	rs, err := o.catalog.Identify(rawURL)
	if err != nil {
		return nil, err
	}
	info, err := o.extractor.Extract(ctx, rawURL, rs)
	if err != nil {
		return nil, err
	}
	outcome := validator.Evaluate(info, rs)

	end := o.now()
	return &model.ValidationResult{
		ID:             uuid.New().String(),
		URL:            rawURL,
		Network:        rs.Name,
		ProductInfo:    *info,
		Validation:     *outcome,
		Score:          validator.Score(outcome),
		Timestamp:      end.UTC(),
		ResponseTimeMS: end.Sub(start).Milliseconds(),
	}, nil
}

// record caches res and, when the URL was validated before, returns how it
// moved since then.
func (o *Orchestrator) record(ctx context.Context, res *model.ValidationResult) *history.Change {
	prev := o.cache.Put(utils.OfferKey(res.URL), res)
	if prev == nil && o.components.Store != nil {
		stored, err := o.components.Store.Latest(ctx, res.URL)
		switch {
		case err == nil:
			prev = stored
		case !errors.Is(err, history.ErrNotFound):
			o.logger.Warn("history lookup failed",
				logging.Field{Key: "url", Value: res.URL},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if prev == nil {
		return nil
	}

	change := history.Compare(prev, res)
	if change.Unchanged() {
		return nil
	}
	o.logger.Info("offer changed since last validation",
		logging.Field{Key: "url", Value: res.URL},
		logging.Field{Key: "base_score", Value: change.BaseScore},
		logging.Field{Key: "head_score", Value: change.HeadScore},
		logging.Field{Key: "delta", Value: change.Delta},
		logging.Field{Key: "grade_changed", Value: change.GradeChanged()},
		logging.Field{Key: "metrics_changed", Value: len(change.MetricDeltas)})
	return change
}

// Sinks run detached from ctx so a cancelled caller still leaves a record.
func (o *Orchestrator) publish(ctx context.Context, res *model.ValidationResult) {
	if len(o.components.Sinks) == 0 {
		return
	}
	if err := o.components.Sinks.Publish(context.WithoutCancel(ctx), res); err != nil {
		o.logger.Warn("publish result failed",
			logging.Field{Key: "url", Value: res.URL},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

func (o *Orchestrator) publishError(ctx context.Context, rec model.ErrorRecord) {
	if len(o.components.Sinks) == 0 {
		return
	}
	if err := o.components.Sinks.PublishError(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("publish error record failed",
			logging.Field{Key: "url", Value: rec.URL},
			logging.Field{Key: "error", Value: err.Error()})
	}
}

// BatchReport is passed to a bulk progress callback after every batch.
type BatchReport struct {
	Batch     int
	Processed int
	Total     int
	Items     []model.BulkItem
	Changes   []*history.Change
}

// ValidateBulk validates urls in sequential batches of batchSize (<= 0 means
// the configured size), pausing Config.BatchDelay before every batch but the
// first. URLs within a batch run concurrently. The returned slice is
// positional: item i always describes urls[i], and a failed URL is recorded
// inline without affecting its siblings. Cancelling ctx during a pause
// records every remaining URL as failed.
func (o *Orchestrator) ValidateBulk(ctx context.Context, urls []string, batchSize int) []model.BulkItem {
	items, _ := o.validateBulk(ctx, urls, batchSize, nil)
	return items
}

// validateBulk also returns the cause when remaining URLs were aborted, and
// nil when every URL was attempted.
func (o *Orchestrator) validateBulk(ctx context.Context, urls []string, batchSize int, progress func(BatchReport)) ([]model.BulkItem, error) {
	if batchSize <= 0 {
		batchSize = o.cfg.batchSize()
	}
	items := make([]model.BulkItem, len(urls))

	batch := 0
	for start := 0; start < len(urls); start += batchSize {
		end := min(start+batchSize, len(urls))
		batch++

		if start > 0 {
			if err := o.sleep(ctx, o.cfg.BatchDelay); err != nil {
				o.abortRemaining(items, urls, start, err)
				if progress != nil {
					progress(BatchReport{Batch: batch, Processed: len(urls), Total: len(urls), Items: items[start:]})
				}
				return items, err
			}
		}

		changes := make([]*history.Change, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				items[i], changes[i-start] = o.bulkItem(ctx, urls[i])
			}(i)
		}
		wg.Wait()

		o.logger.Debug("bulk batch finished",
			logging.Field{Key: "batch", Value: batch},
			logging.Field{Key: "processed", Value: end},
			logging.Field{Key: "total", Value: len(urls)})

		if progress != nil {
			progress(BatchReport{
				Batch:     batch,
				Processed: end,
				Total:     len(urls),
				Items:     items[start:end],
				Changes:   compactChanges(changes),
			})
		}
	}
	return items, nil
}

func (o *Orchestrator) bulkItem(ctx context.Context, rawURL string) (model.BulkItem, *history.Change) {
	res, change, err := o.validate(ctx, rawURL)
	if err != nil {
		return model.BulkItem{URL: rawURL, Error: err.Error(), Timestamp: o.now().UTC()}, nil
	}
	return model.BulkItem{URL: rawURL, Result: res, Timestamp: res.Timestamp}, change
}

func (o *Orchestrator) abortRemaining(items []model.BulkItem, urls []string, from int, cause error) {
	ts := o.now().UTC()
	msg := fmt.Sprintf("bulk validation aborted: %v", cause)
	for i := from; i < len(urls); i++ {
		items[i] = model.BulkItem{URL: urls[i], Error: msg, Timestamp: ts}
	}
	o.logger.Warn("bulk validation aborted",
		logging.Field{Key: "remaining", Value: len(urls) - from},
		logging.Field{Key: "error", Value: cause.Error()})
}

func compactChanges(changes []*history.Change) []*history.Change {
	var out []*history.Change
	for _, c := range changes {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// History returns up to limit past results, newest first. It reads the
// history store when one is configured and the in-memory cache otherwise.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*model.ValidationResult, error) {
	if o.components.Store != nil {
		return o.components.Store.Recent(ctx, limit)
	}
	return o.cache.Recent(limit), nil
}

// OfferHistory returns up to limit results for the offer behind rawURL,
// newest first. Without a store only the cached latest result is known.
func (o *Orchestrator) OfferHistory(ctx context.Context, rawURL string, limit int) ([]*model.ValidationResult, error) {
	if o.components.Store != nil {
		return o.components.Store.ByURL(ctx, rawURL, limit)
	}
	out := []*model.ValidationResult{}
	if res, ok := o.cache.Get(utils.OfferKey(rawURL)); ok {
		out = append(out, res)
	}
	return out, nil
}

// Errors returns up to limit failed validations, newest first. Failures are
// only kept when a history store is configured.
func (o *Orchestrator) Errors(ctx context.Context, limit int) ([]model.ErrorRecord, error) {
	if o.components.Store == nil {
		return []model.ErrorRecord{}, nil
	}
	return o.components.Store.Errors(ctx, limit)
}

// Export renders the whole history in format ("json" or "csv").
func (o *Orchestrator) Export(ctx context.Context, format string) ([]byte, error) {
	if !history.SupportedFormat(format) {
		return nil, fmt.Errorf("%w: %q", history.ErrUnsupportedFormat, format)
	}
	results, err := o.History(ctx, 0)
	if err != nil {
		return nil, err
	}
	return history.Export(results, format)
}

// ─── Jobs ──────────────────────────────────────────────────────────────

func (o *Orchestrator) ensureJobMaps() {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	if o.jobCancels == nil {
		o.jobCancels = make(map[string]context.CancelFunc)
	}
}

func (o *Orchestrator) emitJobEvent(jobID string, ev JobEvent) {
	o.jobsMu.Lock()
	job, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok || job == nil || job.Events == nil {
		return
	}

	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) setJob(job *Job) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobs == nil {
		o.jobs = make(map[string]*Job)
	}
	o.jobs[job.ID] = job
}

func (o *Orchestrator) updateJob(jobID string, fn func(j *Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

func (o *Orchestrator) setCancel(jobID string, cancel context.CancelFunc) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.jobCancels == nil {
		o.jobCancels = make(map[string]context.CancelFunc)
	}
	o.jobCancels[jobID] = cancel
}

func (o *Orchestrator) deleteCancel(jobID string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	delete(o.jobCancels, jobID)
}

func (o *Orchestrator) getCancel(jobID string) context.CancelFunc {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	return o.jobCancels[jobID]
}

// StartBulkJob runs ValidateBulk in the background and returns a snapshot of
// the pending job. Its Events channel receives status changes and one
// progress event per batch, and is closed when the job ends. Cancelling ctx
// cancels the job.
func (o *Orchestrator) StartBulkJob(ctx context.Context, urls []string, batchSize int) (*Job, error) {
	o.jobsMu.Lock()
	closed := o.closed
	o.jobsMu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	urls = cleanURLs(urls)
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}
	if batchSize <= 0 {
		batchSize = o.cfg.batchSize()
	}

	o.ensureJobMaps()
	o.pruneJobs()

	jobID := uuid.New().String()
	job := &Job{
		ID:        jobID,
		Type:      "bulk",
		BatchSize: batchSize,
		Total:     len(urls),
		Status:    JobPending,
		StartedAt: o.now().UTC(),
		Events:    make(chan JobEvent, 16),
	}
	o.setJob(job)

	jobCtx, cancel := context.WithCancel(ctx)
	o.setCancel(jobID, cancel)

	o.emitJobEvent(jobID, JobEvent{
		JobID:  jobID,
		Type:   JobEventStatus,
		Status: JobPending,
	})

	snapshot := *job
	go func() {
		defer func() {
			cancel()
			o.updateJob(jobID, func(j *Job) { j.EndedAt = o.now().UTC() })
			o.deleteCancel(jobID)

			// Close events channel so websocket loop can terminate cleanly
			o.jobsMu.Lock()
			j := o.jobs[jobID]
			o.jobsMu.Unlock()
			if j != nil && j.Events != nil {
				close(j.Events)
			}
		}()

		o.updateJob(jobID, func(j *Job) { j.Status = JobRunning })
		o.emitJobEvent(jobID, JobEvent{
			JobID:  jobID,
			Type:   JobEventStatus,
			Status: JobRunning,
		})

		items, abortErr := o.validateBulk(jobCtx, urls, batchSize, func(r BatchReport) {
			o.updateJob(jobID, func(j *Job) { j.Processed = r.Processed })
			o.emitJobEvent(jobID, JobEvent{
				JobID:     jobID,
				Type:      JobEventProgress,
				Batch:     r.Batch,
				Processed: r.Processed,
				Total:     r.Total,
				Items:     r.Items,
				Changes:   r.Changes,
			})
		})

		// A cancel that lands after the last batch leaves the job done.
		if abortErr != nil {
			o.updateJob(jobID, func(j *Job) {
				j.Status = JobCanceled
				j.Error = abortErr.Error()
				j.Results = items
			})
			o.emitJobEvent(jobID, JobEvent{
				JobID:  jobID,
				Type:   JobEventStatus,
				Status: JobCanceled,
				Error:  abortErr.Error(),
			})
		} else {
			failed := 0
			for _, it := range items {
				if it.Failed() {
					failed++
				}
			}
			o.updateJob(jobID, func(j *Job) {
				j.Status = JobDone
				j.Results = items
			})
			o.logger.Info("bulk job finished",
				logging.Field{Key: "job_id", Value: jobID},
				logging.Field{Key: "total", Value: len(items)},
				logging.Field{Key: "failed", Value: failed})
			o.emitJobEvent(jobID, JobEvent{
				JobID:     jobID,
				Type:      JobEventResult,
				Status:    JobDone,
				Processed: len(items),
				Total:     len(items),
			})
		}
	}()

	return &snapshot, nil
}

func cleanURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// pruneJobs drops finished jobs older than JobRetentionTime.
func (o *Orchestrator) pruneJobs() {
	if o.cfg.JobRetentionTime <= 0 {
		return
	}
	cutoff := o.now().UTC().Add(-o.cfg.JobRetentionTime)
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	for id, j := range o.jobs {
		if !j.EndedAt.IsZero() && j.EndedAt.Before(cutoff) {
			delete(o.jobs, id)
		}
	}
}

// CancelJob stops a running job. It reports false when the job is unknown;
// cancelling a finished job is a no-op that still reports true.
func (o *Orchestrator) CancelJob(jobID string) bool {
	o.jobsMu.Lock()
	_, ok := o.jobs[jobID]
	o.jobsMu.Unlock()
	if !ok {
		return false
	}
	if cancel := o.getCancel(jobID); cancel != nil {
		cancel()
	}
	return true
}

// GetJob returns a snapshot of the job, or nil if it is unknown. The
// snapshot shares the live Events channel.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	cp.Results = append([]model.BulkItem(nil), j.Results...)
	return &cp
}

// ListJobs returns job snapshots, newest first, without their results.
func (o *Orchestrator) ListJobs() []*Job {
	o.pruneJobs()
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		cp.Results = nil
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].StartedAt.After(out[b].StartedAt)
	})
	return out
}

// Close cancels running jobs and releases the components. It is safe to
// call more than once.
func (o *Orchestrator) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.jobsMu.Lock()
		o.closed = true
		cancels := make([]context.CancelFunc, 0, len(o.jobCancels))
		for _, c := range o.jobCancels {
			cancels = append(cancels, c)
		}
		o.jobsMu.Unlock()

		for _, c := range cancels {
			c()
		}
		err = o.components.Close()
	})
	return err
}
