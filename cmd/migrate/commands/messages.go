package commands

import (
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/pipeline"
)

// MessagesCmd prints or exports the id map messages of a migration.
var MessagesCmd = &cobra.Command{
	Use:   "messages <migration-id>",
	Short: "Show the messages recorded for a migration",
	Long: `Show the messages recorded against source rows of a migration:
rows a plugin skipped with a message, and rows that failed.

Examples:
  migrate messages users
  migrate messages users --format json
  migrate messages users --output users-messages.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runMessages,
}

var (
	messagesFormat string
	messagesOutput string
)

func init() {
	MessagesCmd.Flags().StringVar(&messagesFormat, "format", "", "csv or json (default: from --output, else csv)")
	MessagesCmd.Flags().StringVarP(&messagesOutput, "output", "o", "", "Write to this file instead of stdout")
}

func runMessages(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	id := args[0]
	ids, err := app.Catalog.IDMap(id)
	if err != nil {
		return err
	}
	msgs, err := ids.Messages(cmd.Context())
	if err != nil {
		return err
	}

	format := messagesFormat
	if format == "" {
		format = pipeline.FormatFromPath(messagesOutput)
	}
	if format != pipeline.FormatCSV && format != pipeline.FormatJSON {
		return errors.InvalidConfig("unknown format %q, want csv or json", format)
	}
	write := func(w io.Writer) error {
		return pipeline.ExportMessages(w, format, id, msgs)
	}

	if messagesOutput == "" {
		return write(os.Stdout)
	}
	if err := pipeline.ExportToFile(messagesOutput, write); err != nil {
		return err
	}
	pterm.Success.Printf("%d messages written to %s\n", len(msgs), messagesOutput)
	return nil
}
