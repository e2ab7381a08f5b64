package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/model"
)

// ResetStatusCmd marks a run left "running" by a killed process as
// interrupted.
var ResetStatusCmd = &cobra.Command{
	Use:   "reset-status <migration-id>",
	Short: "Mark a stuck run of a migration as interrupted",
	Args:  cobra.ExactArgs(1),
	RunE:  runResetStatus,
}

func runResetStatus(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	id := args[0]
	if _, err := app.Catalog.Definition(id); err != nil {
		return err
	}
	last, err := app.Runs.Last(cmd.Context(), id)
	if err != nil {
		return err
	}
	if last == nil || last.Status != model.RunRunning {
		pterm.Info.Printf("%s is idle\n", id)
		return nil
	}
	if err := app.Runs.UpdateStatus(cmd.Context(), last.RunID, model.RunInterrupted); err != nil {
		return err
	}
	pterm.Success.Printf("Run %s of %s marked %s\n", last.RunID, id, model.RunInterrupted)
	return nil
}
