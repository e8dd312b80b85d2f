package app

import (
	"context"
	"testing"

	"github.com/raysh454/offerlens/internal/testutil"
)

func TestApplication_LifeCycle(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.StorageRoot = t.TempDir()
	logger := &testutil.DummyLogger{}

	a, err := NewApplication(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	if a.Orch == nil || a.Config != cfg {
		t.Fatalf("unexpected application: %+v", a)
	}

	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	select {
	case <-a.Context().Done():
	default:
		t.Error("expected application context to be cancelled")
	}
	if !logger.Logged("application shutdown initiated") {
		t.Error("expected shutdown to be logged")
	}
}

func TestApplication_ShutdownNil(t *testing.T) {
	t.Parallel()
	var a *Application
	if err := a.Shutdown(context.Background()); err == nil {
		t.Error("expected error for nil application")
	}
}
