package commands

import (
	"sync"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/errors"
)

var (
	rootOnce sync.Once
	rootCmd  *cobra.Command
)

// Root returns the migrate command tree, built on first use.
func Root() *cobra.Command {
	rootOnce.Do(func() { rootCmd = newRootCmd() })
	return rootCmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Run and inspect data migrations",
		Long: `migrate - Run data migrations defined in YAML files.

Each migration reads rows from a source, computes destination fields through
a chain of process plugins and writes them to a destination, keeping an id
map from source ids to destination ids.

Available commands:
  status         - Show migration status
  import         - Import migrations
  rollback       - Roll migrations back
  reset-status   - Mark a stuck run as interrupted
  messages       - Show messages recorded for a migration
  fields-source  - List source fields of a migration
  process        - Show the process pipeline of a migration
  serve          - Serve the reporting API

Settings come from ./migrate.yaml (or --config) and MIGRATE_* environment
variables, e.g. MIGRATE_DATABASE_PATH.`,
		SilenceUsage: true,
	}
	AddGlobalFlags(root)
	root.AddCommand(StatusCmd, ImportCmd, RollbackCmd, ResetStatusCmd, MessagesCmd, FieldsSourceCmd, ProcessCmd, ServeCmd)
	return root
}

// Execute runs cmd and returns the process exit code. Failures are printed
// with their hints.
func Execute(cmd *cobra.Command) int {
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err != nil {
		pterm.Error.Println(err)
		if hint := errors.FlattenHints(err); hint != "" {
			pterm.Info.Println(hint)
		}
		return 1
	}
	return 0
}
