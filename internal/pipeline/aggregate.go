package pipeline

import (
	"context"
	"time"

	"go-migrate-pipeline/internal/idmap"
	"go-migrate-pipeline/internal/model"
)

// RunHistory reads past runs.
type RunHistory interface {
	Last(ctx context.Context, migrationID string) (*model.RunSummary, error)
}

type messageCounter interface {
	MessageCount(ctx context.Context) (int, error)
}

// Status aggregates the id map of a migration against its source into a
// report. Failures to reach the source are reported in the Error field so a
// status listing can still show the other migrations.
func Status(ctx context.Context, m *Migration, ids idmap.Map, runs RunHistory) model.StatusReport {
	def := m.Definition
	r := model.StatusReport{
		MigrationID: def.ID,
		Label:       def.Label,
		Group:       def.Group,
	}

	counts, err := ids.Counts(ctx)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	processed := 0
	for _, n := range counts {
		processed += n
	}
	r.Imported = counts[model.StatusImported]
	r.NeedsUpdate = counts[model.StatusNeedsUpdate]
	r.Ignored = counts[model.StatusIgnored]
	r.Failed = counts[model.StatusFailed]

	if mc, ok := ids.(messageCounter); ok {
		r.Messages, err = mc.MessageCount(ctx)
	} else {
		var msgs []model.Message
		msgs, err = ids.Messages(ctx)
		r.Messages = len(msgs)
	}
	if err != nil {
		r.Error = err.Error()
	}

	total, err := m.Source.Count(ctx)
	if err != nil {
		r.Error = err.Error()
		r.Total = -1
	} else {
		r.Total = total
		r.Unprocessed = max(total-processed, 0)
	}

	if runs != nil {
		last, err := runs.Last(ctx, def.ID)
		if err == nil && last != nil {
			at := last.StartedAt
			r.LastRun = &at
			r.LastStatus = last.Status
		}
	}
	return r
}

// Totals sums a set of reports, for a group line in a status listing.
// Migrations whose source could not be counted do not add to Total.
func Totals(label string, reports []model.StatusReport) model.StatusReport {
	t := model.StatusReport{MigrationID: label, Label: label}
	var last time.Time
	for _, r := range reports {
		if r.Total > 0 {
			t.Total += r.Total
		}
		t.Imported += r.Imported
		t.Unprocessed += r.Unprocessed
		t.NeedsUpdate += r.NeedsUpdate
		t.Ignored += r.Ignored
		t.Failed += r.Failed
		t.Messages += r.Messages
		if r.LastRun != nil && r.LastRun.After(last) {
			last = *r.LastRun
			t.LastStatus = r.LastStatus
		}
	}
	if !last.IsZero() {
		t.LastRun = &last
	}
	return t
}
