package commands

import (
	"sort"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// FieldsSourceCmd lists the fields a migration's source offers.
var FieldsSourceCmd = &cobra.Command{
	Use:   "fields-source <migration-id>",
	Short: "List the fields available in a migration's source",
	Args:  cobra.ExactArgs(1),
	RunE:  runFieldsSource,
}

// ProcessCmd prints the process pipeline of a migration.
var ProcessCmd = &cobra.Command{
	Use:   "process <migration-id>",
	Short: "Show how a migration computes each destination field",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

func runFieldsSource(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	m, err := app.Catalog.Build(args[0])
	if err != nil {
		return err
	}
	fields := m.Source.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	pterm.Info.Printf("%s (%s)\n", m.Source.String(), m.Source.PluginID())
	data := pterm.TableData{{"Machine name", "Description", "Id"}}
	for _, name := range names {
		isID := ""
		for _, id := range m.Source.IDs() {
			if id == name {
				isID = "yes"
			}
		}
		data = append(data, []string{name, fields[name], isID})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runProcess(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	def, err := app.Catalog.Definition(args[0])
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Destination", "Step", "Plugin", "Configuration"}}
	for _, field := range def.Process {
		for i, step := range field.Steps {
			name := ""
			if i == 0 {
				name = field.Destination
			}
			cfg := ""
			if len(step.Config) > 0 {
				b, err := yaml.Marshal(step.Config)
				if err != nil {
					return err
				}
				cfg = strings.TrimSpace(string(b))
			}
			data = append(data, []string{name, pterm.Sprint(i + 1), step.Plugin, cfg})
		}
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
