package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RollbackCmd rolls migrations back.
var RollbackCmd = &cobra.Command{
	Use:   "rollback [migration-id...]",
	Short: "Roll migrations back",
	Long: `Delete what the selected migrations created and clear their id maps.
Dependents roll back before the migrations they depend on. Records that
existed before a migration wrote them are kept.

Examples:
  migrate rollback posts
  migrate rollback --group blog`,
	RunE: runRollback,
}

var rollbackSelection selection

func init() {
	rollbackSelection.register(RollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ids, err := rollbackSelection.resolve(app.Catalog, args, true)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	summaries, err := app.Catalog.RollbackAll(ctx, ids)
	printSummaries(summaries)
	if err == nil {
		pterm.Success.Printf("Rolled back %d migrations\n", len(summaries))
	}
	return err
}
