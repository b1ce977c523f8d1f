package sheetsync

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"eventreg/internal/models"
)

type PushReport struct {
	Written int
	Failed  int
}

// Push writes the verification status of every registration into the sheet. The column
// comes from the stored header, not a fresh fetch. A missing status column aborts before
// any write; individual write failures are counted and the loop continues.
func (s *Syncer) Push(ctx context.Context, ev *models.Event) (PushReport, error) {
	var report PushReport
	log := s.log.With(zap.Int64("event_id", ev.ID), zap.String("table_id", ev.TableID))

	col, err := s.statusColumn(ev)
	if err != nil {
		log.Error("Push aborted", zap.Error(err))
		return report, err
	}
	if ev.HeaderDrift {
		log.Warn("Pushing with a stored header that no longer matches the sheet")
	}

	regs, err := s.store.ListRegistrations(ctx, ev.ID)
	if err != nil {
		return report, fmt.Errorf("list registrations: %w", err)
	}

	for _, reg := range regs {
		if err := s.writeStatus(ctx, ev, col, reg); err != nil {
			report.Failed++
			log.Warn("Failed to write status cell",
				zap.Error(err),
				zap.Int("row", reg.Row))
			continue
		}
		report.Written++
	}

	log.Info("Push finished",
		zap.Int("written", report.Written),
		zap.Int("failed", report.Failed))
	if report.Failed > 0 {
		s.notify(ctx, fmt.Sprintf("⚠️ Event %q (%d): push wrote %d cells, %d failed. Run push again.",
			ev.Name, ev.ID, report.Written, report.Failed))
	}
	return report, nil
}

// PushOne writes the status of a single registration.
func (s *Syncer) PushOne(ctx context.Context, ev *models.Event, reg models.Registration) error {
	col, err := s.statusColumn(ev)
	if err != nil {
		return err
	}
	return s.writeStatus(ctx, ev, col, reg)
}

func (s *Syncer) statusColumn(ev *models.Event) (string, error) {
	return s.mapper.ColumnLetter(models.FieldVerified, ev.Header)
}

func (s *Syncer) writeStatus(ctx context.Context, ev *models.Event, col string, reg models.Registration) error {
	status := s.opts.StatusUnverified
	if reg.Verified {
		status = s.opts.StatusVerified
	}
	cell := col + strconv.Itoa(reg.Row)
	if err := s.src.UpdateRange(ctx, ev.TableID, ev.SheetName, cell, [][]string{{status}}); err != nil {
		s.opts.Metrics.PushWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: write %s: %w", ErrSourceUnavailable, cell, err)
	}
	s.opts.Metrics.PushWrites.WithLabelValues("ok").Inc()
	return nil
}
