package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raysh454/offerlens/internal/app"
	"github.com/raysh454/offerlens/internal/history"
	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/server"
)

// ErrValidationFailed is returned by validate when at least one URL could not
// be validated. The successful results are still written.
var ErrValidationFailed = errors.New("one or more offers failed validation")

const serveShutdownTimeout = 10 * time.Second

// Run executes one command. Results go to stdout, logs and per-URL failures
// to stderr. Cancelling ctx stops a running server.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	parsed, err := ParseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := app.LoadConfig(parsed.ConfigPath)
	if err != nil {
		return err
	}
	logger := logging.NewWriterLogger("offerlens", stderr, logging.ParseLevel(cfg.LogLevel))

	switch parsed.Command {
	case CommandServe:
		if parsed.Addr != "" {
			cfg.Listen = parsed.Addr
		}
		return serve(ctx, cfg, logger)
	default:
		return validate(ctx, cfg, parsed, stdout, stderr, logger)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger logging.Logger) error {
	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		ListenAddr:   cfg.Listen,
		AppConfig:    cfg,
		Logger:       logger.With(logging.Field{Key: "component", Value: "server"}),
		Orchestrator: application.Orch,
	})
	if err != nil {
		_ = application.Shutdown(context.Background())
		return err
	}
	httpSrv := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: cfg.Listen})
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("http shutdown", logging.Field{Key: "error", Value: serr.Error()})
		}
	}

	if serr := application.Shutdown(context.Background()); serr != nil && err == nil {
		err = serr
	}
	return err
}

func validate(ctx context.Context, cfg *app.Config, args *CLIArgs, stdout, stderr io.Writer, logger logging.Logger) error {
	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = application.Shutdown(context.Background()) }()

	items := application.Orch.ValidateBulk(ctx, args.URLs, args.BatchSize)

	failed := 0
	results := make([]*model.ValidationResult, 0, len(items))
	for _, it := range items {
		if it.Failed() {
			failed++
			fmt.Fprintf(stderr, "%s: %s\n", it.URL, it.Error)
			continue
		}
		results = append(results, it.Result)
	}

	if err := writeResults(stdout, args.Format, items, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrValidationFailed, failed, len(items))
	}
	return nil
}

// writeResults prints the full bulk items as JSON, or only the successful
// results as CSV since the CSV layout has no error column.
func writeResults(w io.Writer, format string, items []model.BulkItem, results []*model.ValidationResult) error {
	if format == "" || strings.EqualFold(strings.TrimSpace(format), history.FormatJSON) {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	out, err := history.Export(results, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
