package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// FormatFromPath picks the export format from a file extension. Unknown
// extensions export CSV.
func FormatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// ExportMessages writes the id map messages of a migration.
func ExportMessages(w io.Writer, format, migrationID string, msgs []model.Message) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, "messages", migrationID, len(msgs), msgs)
	case FormatCSV:
		rows := make([][]string, 0, len(msgs))
		for _, m := range msgs {
			rows = append(rows, []string{
				strconv.FormatInt(m.ID, 10),
				m.SourceKey.String(),
				m.Level.String(),
				m.Message,
				m.CreatedAt.Format(time.RFC3339),
			})
		}
		return writeCSV(w, []string{"id", "source_ids", "level", "message", "created_at"}, rows)
	}
	return errors.Newf("unknown export format %q", format)
}

// ExportStatus writes status reports.
func ExportStatus(w io.Writer, format string, reports []model.StatusReport) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, "status", "", len(reports), reports)
	case FormatCSV:
		rows := make([][]string, 0, len(reports))
		for _, r := range reports {
			last := ""
			if r.LastRun != nil {
				last = r.LastRun.Format(time.RFC3339)
			}
			rows = append(rows, []string{
				r.MigrationID, r.Group,
				strconv.Itoa(r.Total), strconv.Itoa(r.Imported), strconv.Itoa(r.Unprocessed),
				strconv.Itoa(r.NeedsUpdate), strconv.Itoa(r.Ignored), strconv.Itoa(r.Failed),
				strconv.Itoa(r.Messages), last, r.LastStatus,
			})
		}
		return writeCSV(w, []string{
			"migration_id", "group", "total", "imported", "unprocessed",
			"needs_update", "ignored", "failed", "messages", "last_run", "last_status",
		}, rows)
	}
	return errors.Newf("unknown export format %q", format)
}

// ExportToFile creates path, and its directory, and hands it to write.
func ExportToFile(path string, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "failed to write rows")
	}
	return nil
}

func writeJSON(w io.Writer, kind, migrationID string, count int, data interface{}) error {
	info := map[string]interface{}{
		"exported_at":  time.Now().UTC(),
		"record_count": count,
		"export_type":  kind,
	}
	if migrationID != "" {
		info["migration_id"] = migrationID
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{"export_info": info, "data": data}); err != nil {
		return errors.Wrap(err, "failed to encode JSON")
	}
	return nil
}
