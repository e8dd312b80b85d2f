// Package sink delivers finished validations to downstream consumers.
package sink

import (
	"context"
	"errors"

	"github.com/raysh454/offerlens/internal/model"
)

// Sink receives every completed validation and every failure.
type Sink interface {
	Publish(ctx context.Context, result *model.ValidationResult) error
	PublishError(ctx context.Context, rec model.ErrorRecord) error
}

// Funcs adapts plain callbacks. Nil callbacks are skipped.
type Funcs struct {
	OnResult func(*model.ValidationResult)
	OnError  func(model.ErrorRecord)
}

func (f Funcs) Publish(_ context.Context, r *model.ValidationResult) error {
	if f.OnResult != nil {
		f.OnResult(r)
	}
	return nil
}

func (f Funcs) PublishError(_ context.Context, rec model.ErrorRecord) error {
	if f.OnError != nil {
		f.OnError(rec)
	}
	return nil
}

// Multi fans out to every sink, joining their errors.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, r *model.ValidationResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) PublishError(ctx context.Context, rec model.ErrorRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.PublishError(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ResultStore is the persistence contract Store writes to.
type ResultStore interface {
	Save(ctx context.Context, r *model.ValidationResult) error
	SaveError(ctx context.Context, rec model.ErrorRecord) error
}

// Store persists into a ResultStore such as history.SQLiteStore.
type Store struct {
	store ResultStore
}

func NewStore(store ResultStore) *Store {
	return &Store{store: store}
}

func (s *Store) Publish(ctx context.Context, r *model.ValidationResult) error {
	return s.store.Save(ctx, r)
}

func (s *Store) PublishError(ctx context.Context, rec model.ErrorRecord) error {
	return s.store.SaveError(ctx, rec)
}
