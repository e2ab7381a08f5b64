package commands

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/pipeline"
)

// StatusCmd lists migrations with their id map counts.
var StatusCmd = &cobra.Command{
	Use:   "status [migration-id...]",
	Short: "Show the status of migrations",
	Long: `Show one line per migration: source rows, imported, unprocessed,
rows marked for update, ignored and failed rows, messages and the last run.

Examples:
  migrate status                    # Every migration
  migrate status --group blog       # One group, with a total line
  migrate status --export status.csv`,
	RunE: runStatus,
}

var (
	statusSelection selection
	statusExport    string
)

func init() {
	statusSelection.register(StatusCmd)
	StatusCmd.Flags().StringVar(&statusExport, "export", "", "Also write the report to this .csv or .json file")
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ids, err := statusSelection.resolve(app.Catalog, args, false)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		pterm.Warning.Println("No migrations found")
		return nil
	}

	reports := make([]model.StatusReport, 0, len(ids))
	for _, id := range ids {
		r, err := app.Catalog.Status(cmd.Context(), id)
		if err != nil {
			return err
		}
		reports = append(reports, r)
	}

	data := pterm.TableData{{"Group", "Migration", "Status", "Total", "Imported", "Unprocessed", "Update", "Ignored", "Failed", "Messages", "Last run"}}
	for _, r := range reports {
		data = append(data, statusRow(r))
	}
	if len(reports) > 1 {
		data = append(data, statusRow(pipeline.Totals("Total", reports)))
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	for _, r := range reports {
		if r.Error != "" {
			pterm.Warning.Printf("%s: %s\n", r.MigrationID, r.Error)
		}
	}

	if statusExport != "" {
		format := pipeline.FormatFromPath(statusExport)
		err := pipeline.ExportToFile(statusExport, func(w io.Writer) error {
			return pipeline.ExportStatus(w, format, reports)
		})
		if err != nil {
			return err
		}
		pterm.Success.Printf("Status written to %s\n", statusExport)
	}
	return nil
}

func statusRow(r model.StatusReport) []string {
	total := strconv.Itoa(r.Total)
	if r.Total < 0 {
		total = "N/A"
	}
	state := "Idle"
	if r.LastStatus == model.RunRunning {
		state = "Importing"
	}
	last := ""
	if r.LastRun != nil {
		last = fmt.Sprintf("%s (%s)", r.LastRun.Local().Format(time.DateTime), r.LastStatus)
	}
	return []string{
		r.Group, r.MigrationID, state, total,
		strconv.Itoa(r.Imported), strconv.Itoa(r.Unprocessed), strconv.Itoa(r.NeedsUpdate),
		strconv.Itoa(r.Ignored), strconv.Itoa(r.Failed), strconv.Itoa(r.Messages), last,
	}
}
