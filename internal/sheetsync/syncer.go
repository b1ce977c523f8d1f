// Package sheetsync imports registrations from a spreadsheet and writes verification
// status back to it.
//
// A pull replaces every registration of an event with the current sheet content,
// carrying confirmed/verified state over through a Policy. A push writes one status
// cell per registration into the column the stored header assigns to "verified".
// Neither operation is safe to run concurrently for the same event.
package sheetsync

import (
	"context"

	"go.uber.org/zap"

	"eventreg/internal/columns"
	"eventreg/internal/metrics"
	"eventreg/internal/storage"
)

// Source is the spreadsheet as seen by the engine.
type Source interface {
	// GetRange returns the cells of a1 on sheet, or nil when the range holds no data.
	GetRange(ctx context.Context, tableID, sheet, a1 string) ([][]string, error)
	// UpdateRange overwrites the cells of a1 on sheet.
	UpdateRange(ctx context.Context, tableID, sheet, a1 string, values [][]string) error
}

// Notifier delivers operator-facing warnings (schema drift, failed writes).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

type Store interface {
	storage.EventStore
	storage.RegistrationStore
}

type Options struct {
	PageSize         int    // rows per GetRange call
	LastColumn       string // rightmost column read, e.g. "AZ"
	StatusVerified   string
	StatusUnverified string
	CarryOver        CarryOverKey

	Metrics  *metrics.Metrics
	Notifier Notifier
}

const (
	DefaultPageSize   = 30
	DefaultLastColumn = "AZ"
)

type Syncer struct {
	src    Source
	store  Store
	mapper *columns.Mapper
	policy Policy
	opts   Options
	log    *zap.Logger
}

func New(src Source, store Store, mapper *columns.Mapper, opts Options, log *zap.Logger) *Syncer {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.LastColumn == "" {
		opts.LastColumn = DefaultLastColumn
	}
	if opts.StatusVerified == "" {
		opts.StatusVerified = "Verified"
	}
	if opts.StatusUnverified == "" {
		opts.StatusUnverified = "Unverified"
	}
	if opts.CarryOver == "" {
		opts.CarryOver = CarryByRow
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		src:    src,
		store:  store,
		mapper: mapper,
		policy: Policy{Key: opts.CarryOver},
		opts:   opts,
		log:    log,
	}
}

func (s *Syncer) notify(ctx context.Context, text string) {
	if s.opts.Notifier == nil {
		return
	}
	if err := s.opts.Notifier.Notify(ctx, text); err != nil {
		s.log.Warn("Failed to notify operators", zap.Error(err))
	}
}
