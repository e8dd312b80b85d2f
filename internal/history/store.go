package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/offerlens/internal/logging"
	"github.com/raysh454/offerlens/internal/model"
	"github.com/raysh454/offerlens/internal/utils"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

var ErrNotFound = errors.New("validation not found")

// SQLiteStore persists validation results and error records.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string, logger logging.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure history dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under bulk runs.
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore applies pragmas and the schema to db.
func NewSQLiteStore(db *sql.DB, logger logging.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "history_store"}),
	}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Save inserts a result, replacing a row with the same id.
func (s *SQLiteStore) Save(ctx context.Context, r *model.ValidationResult) error {
	if r == nil {
		return fmt.Errorf("nil result")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	passed := 0
	if r.Validation.Passed {
		passed = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO validations
           (id, url, offer_key, network, product_name, overall, grade, passed, created_at, payload)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.URL, utils.OfferKey(r.URL), r.Network, r.ProductInfo.Name, r.Score.Overall, r.Score.Grade,
		passed, r.Timestamp.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert validation: %w", err)
	}
	return nil
}

// SaveError records a failed validation.
func (s *SQLiteStore) SaveError(ctx context.Context, rec model.ErrorRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO validation_errors (url, error, created_at) VALUES (?, ?, ?)`,
		rec.URL, rec.Error, ts.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert validation error: %w", err)
	}
	return nil
}

// Recent returns up to limit results, newest first. limit <= 0 means all.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*model.ValidationResult, error) {
	q := `SELECT payload FROM validations ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query validations: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// ByURL returns up to limit results for the offer behind url, newest first.
// URLs that differ only in tracking parameters share an offer. limit <= 0
// means all.
func (s *SQLiteStore) ByURL(ctx context.Context, url string, limit int) ([]*model.ValidationResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM validations WHERE offer_key = ? ORDER BY created_at DESC, id LIMIT ?`,
		utils.OfferKey(url), limit)
	if err != nil {
		return nil, fmt.Errorf("query validations by url: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// Latest returns the newest result for the offer behind url or ErrNotFound.
func (s *SQLiteStore) Latest(ctx context.Context, url string) (*model.ValidationResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM validations WHERE offer_key = ? ORDER BY created_at DESC LIMIT 1`,
		utils.OfferKey(url),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query latest validation: %w", err)
	}
	var r model.ValidationResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode validation: %w", err)
	}
	return &r, nil
}

// Errors returns up to limit error records, newest first.
func (s *SQLiteStore) Errors(ctx context.Context, limit int) ([]model.ErrorRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, error, created_at FROM validation_errors ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query validation errors: %w", err)
	}
	defer rows.Close()

	out := []model.ErrorRecord{}
	for rows.Next() {
		var rec model.ErrorRecord
		var ts int64
		if err := rows.Scan(&rec.URL, &rec.Error, &ts); err != nil {
			return nil, fmt.Errorf("scan validation error: %w", err)
		}
		rec.Timestamp = time.Unix(0, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanResults(rows *sql.Rows) ([]*model.ValidationResult, error) {
	out := []*model.ValidationResult{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		var r model.ValidationResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode validation: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
