package storage

import (
	"context"
	"errors"

	"github.com/oikos-cash/oikos-data-bsc/internal/model"
)

// Sink receives normalized records.
type Sink interface {
	PutRecords(ctx context.Context, records []model.Envelope) error
}

// CursorStore persists the last delivered timestamp of a stream.
type CursorStore interface {
	Load(ctx context.Context) (int64, bool, error)
	Save(ctx context.Context, ts int64) error
}

// MultiSink writes records to every sink in order.
type MultiSink []Sink

func (m MultiSink) PutRecords(ctx context.Context, records []model.Envelope) error {
	var errs []error
	for _, sink := range m {
		if err := sink.PutRecords(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
