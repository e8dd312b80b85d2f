package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raysh454/offerlens/internal/logging"
)

const shutdownTimeout = 15 * time.Second

// Application is the global runtime state container.
// It holds config and the core services that are shared across modules
// (orchestrator, logger). Pass Application into modules that need access to
// the global state rather than using package-level variables.
type Application struct {
	Config *Config
	Logger logging.Logger
	Orch   *Orchestrator

	// internal context for cancellation / lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

// NewApplication builds components from cfg and an orchestrator over them.
func NewApplication(ctx context.Context, cfg *Config, logger logging.Logger) (*Application, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	comps, err := NewComponents(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build components: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)
	return &Application{
		Config: cfg,
		Logger: logger,
		Orch:   NewOrchestrator(cfg, comps, logger),
		ctx:    appCtx,
		cancel: cancel,
	}, nil
}

// Context is cancelled when the application shuts down.
func (a *Application) Context() context.Context {
	return a.ctx
}

// Shutdown attempts a graceful shutdown, closing the orchestrator within a
// bounded timeout.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Orch.Close() }()

	var err error
	select {
	case err = <-done:
		if err != nil {
			a.Logger.Warn("orchestrator shutdown returned error", logging.Field{Key: "error", Value: err.Error()})
		}
	case <-shutdownCtx.Done():
		err = fmt.Errorf("orchestrator shutdown: %w", shutdownCtx.Err())
	}

	// cancel internal ctx to signal local components/tests
	a.cancel()
	return err
}
