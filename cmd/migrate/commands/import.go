package commands

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/model"
)

// ImportCmd runs imports.
var ImportCmd = &cobra.Command{
	Use:   "import [migration-id...]",
	Short: "Import migrations",
	Long: `Import the selected migrations in dependency order. A migration whose
required dependency does not complete is skipped.

Examples:
  migrate import users posts
  migrate import --group blog --update
  migrate import articles --limit 10
  migrate import articles --idlist 4,7,12`,
	RunE: runImport,
}

var (
	importSelection selection
	importLimit     int
	importIDList    string
	importUpdate    bool
)

func init() {
	importSelection.register(ImportCmd)
	ImportCmd.Flags().IntVar(&importLimit, "limit", 0, "Stop each migration after this many processed rows")
	ImportCmd.Flags().StringVar(&importIDList, "idlist", "", "Only these source ids, comma separated, composite parts colon separated")
	ImportCmd.Flags().BoolVar(&importUpdate, "update", false, "Reprocess rows that are already imported")
}

func runImport(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ids, err := importSelection.resolve(app.Catalog, args, true)
	if err != nil {
		return err
	}

	opts := app.Catalog.Options()
	opts.Limit = importLimit
	opts.Update = importUpdate
	opts.IDList = model.ParseKeyList(importIDList)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	summaries, err := app.Catalog.ImportAll(ctx, ids, opts)
	printSummaries(summaries)
	return err
}

// signalContext is cancelled by Ctrl+C or SIGTERM. Runs stop after the row
// in flight.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printSummaries(summaries []model.RunSummary) {
	if len(summaries) == 0 {
		return
	}
	data := pterm.TableData{{"Migration", "Operation", "Status", "Processed", "Imported", "Updated", "Skipped", "Failed", "Unchanged", "Rolled back", "Duration"}}
	for _, s := range summaries {
		data = append(data, []string{
			s.MigrationID, s.Operation, s.Status,
			strconv.Itoa(s.Processed), strconv.Itoa(s.Imported), strconv.Itoa(s.Updated),
			strconv.Itoa(s.Skipped), strconv.Itoa(s.Failed), strconv.Itoa(s.Unchanged),
			strconv.Itoa(s.RolledBack), s.Duration.Round(time.Millisecond).String(),
		})
	}
	pterm.Println()
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	for _, s := range summaries {
		switch s.Status {
		case model.RunCompleted:
			if s.Failed > 0 {
				pterm.Warning.Printf("%s: %d rows failed, see `migrate messages %s`\n", s.MigrationID, s.Failed, s.MigrationID)
			}
		default:
			msg := s.Error
			if msg == "" {
				msg = s.Status
			}
			pterm.Error.Printf("%s: %s\n", s.MigrationID, msg)
		}
	}
}
