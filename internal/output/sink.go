// Package output writes enrichment records produced by a screening run.
package output

import (
	"context"
	"errors"

	"github.com/DominicTanzillo/Panacea/internal/classify"
)

// Sink receives batches of enrichment records.
type Sink interface {
	Write(ctx context.Context, records []classify.Enrichment) error
	Close() error
}

// Multi fans every batch out to all sinks. Every sink is attempted; the
// errors are joined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, records []classify.Enrichment) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
