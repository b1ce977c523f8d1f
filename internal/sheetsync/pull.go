package sheetsync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eventreg/internal/models"
)

type PullReport struct {
	RunID    string
	Imported int  // registrations created
	Skipped  int  // blank rows passed over
	Carried  int  // registrations that inherited confirmed/verified state
	Drift    bool // sheet header differs from the stored one
}

// Pull re-imports all rows of the event's sheet. A failure after the old registrations
// were deleted leaves a partial import; the operator re-runs the pull.
func (s *Syncer) Pull(ctx context.Context, ev *models.Event) (PullReport, error) {
	report := PullReport{RunID: uuid.NewString()}
	log := s.log.With(
		zap.Int64("event_id", ev.ID),
		zap.String("table_id", ev.TableID),
		zap.String("run_id", report.RunID))

	report, err := s.pull(ctx, ev, report, log)
	if err != nil {
		s.opts.Metrics.Pulls.WithLabelValues("failed").Inc()
		log.Error("Pull failed",
			zap.Error(err),
			zap.Int("imported", report.Imported))
		return report, err
	}
	s.opts.Metrics.Pulls.WithLabelValues("ok").Inc()
	log.Info("Pull finished",
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("carried", report.Carried),
		zap.Bool("drift", report.Drift))
	return report, nil
}

func (s *Syncer) pull(ctx context.Context, ev *models.Event, report PullReport, log *zap.Logger) (PullReport, error) {
	header, err := s.fetchHeader(ctx, ev)
	if err != nil {
		return report, err
	}

	switch {
	case len(ev.Header) == 0:
		if err := s.store.UpdateEventHeader(ctx, ev.ID, header, false); err != nil {
			return report, fmt.Errorf("store header: %w", err)
		}
		ev.Header = header
		ev.HeaderDrift = false
		log.Info("Adopted sheet header", zap.Strings("header", header))
	case !slices.Equal(ev.Header, header):
		// keep the stored header; the operator decides whether to accept the new one
		report.Drift = true
		s.opts.Metrics.SchemaDrift.Inc()
		if !ev.HeaderDrift {
			if err := s.store.UpdateEventHeader(ctx, ev.ID, ev.Header, true); err != nil {
				return report, fmt.Errorf("store drift flag: %w", err)
			}
			ev.HeaderDrift = true
		}
		log.Warn("Sheet header changed since it was stored",
			zap.Strings("stored", ev.Header),
			zap.Strings("sheet", header))
		s.notify(ctx, fmt.Sprintf("⚠️ Event %q (%d): the sheet header changed since the last pull. "+
			"The stored header is kept, so pushes still use the old column positions. "+
			"Accept the new header with `eventreg event accept-header %d` and pull again.",
			ev.Name, ev.ID, ev.ID))
	case ev.HeaderDrift:
		if err := s.store.UpdateEventHeader(ctx, ev.ID, ev.Header, false); err != nil {
			return report, fmt.Errorf("clear drift flag: %w", err)
		}
		ev.HeaderDrift = false
	}

	existing, err := s.store.ListRegistrations(ctx, ev.ID)
	if err != nil {
		return report, fmt.Errorf("list registrations: %w", err)
	}
	carried := s.policy.Snapshot(existing)

	if err := s.store.DeleteAllForEvent(ctx, ev.ID); err != nil {
		return report, fmt.Errorf("delete registrations: %w", err)
	}

	rowNum := 2 + ev.SkipRows
	for {
		a1 := fmt.Sprintf("A%d:%s%d", rowNum, s.opts.LastColumn, rowNum+s.opts.PageSize-1)
		rows, err := s.src.GetRange(ctx, ev.TableID, ev.SheetName, a1)
		if err != nil {
			return report, fmt.Errorf("%w: rows from %d: %w", ErrSourceUnavailable, rowNum, err)
		}
		if len(rows) == 0 {
			break
		}
		for _, cells := range rows {
			reg, ok := s.buildRegistration(ev.ID, rowNum, header, cells)
			rowNum++
			if !ok {
				report.Skipped++
				continue
			}
			if s.policy.Apply(carried, &reg) {
				report.Carried++
			}
			if err := s.store.Upsert(ctx, &reg); err != nil {
				return report, fmt.Errorf("save row %d: %w", reg.Row, err)
			}
			report.Imported++
			s.opts.Metrics.RowsImported.Inc()
		}
	}
	return report, nil
}

func (s *Syncer) fetchHeader(ctx context.Context, ev *models.Event) ([]string, error) {
	rows, err := s.src.GetRange(ctx, ev.TableID, ev.SheetName, "A1:"+s.opts.LastColumn+"1")
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrSourceUnavailable, err)
	}
	if len(rows) == 0 || isBlank(rows[0]) {
		return nil, ErrEmptyHeader
	}
	return rows[0], nil
}

// buildRegistration zips cells against header. Cells past the header are notes and
// are dropped; when two labels map to the same field the first one wins.
func (s *Syncer) buildRegistration(eventID int64, row int, header, cells []string) (models.Registration, bool) {
	reg := models.Registration{EventID: eventID, Row: row}
	seen := map[string]bool{}
	blank := true
	for i, cell := range cells {
		if i >= len(header) {
			break
		}
		field := s.mapper.FieldName(header[i])
		if field == "" || seen[field] {
			continue
		}
		seen[field] = true
		if strings.TrimSpace(cell) != "" {
			blank = false
		}
		reg.Fields.Set(field, cell)
	}
	return reg, !blank
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
