package pipeline

import (
	"regexp"

	"go-migrate-pipeline/internal/destination"
	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/process"
	"go-migrate-pipeline/internal/source"
)

var migrationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Registries are the plugin registries migrations are built from. Nil
// fields fall back to the package defaults.
type Registries struct {
	Sources      *source.Registry
	Process      *process.Registry
	Destinations *destination.Registry
}

func (r Registries) withDefaults() Registries {
	if r.Sources == nil {
		r.Sources = source.Default
	}
	if r.Process == nil {
		r.Process = process.Default
	}
	if r.Destinations == nil {
		r.Destinations = destination.Default
	}
	return r
}

// ValidateDefinition checks the shape of a definition and that every plugin
// it names is registered. Plugin options are checked when the migration is
// built.
func ValidateDefinition(def *model.MigrationDefinition, regs Registries) error {
	regs = regs.withDefaults()
	if def.ID == "" {
		return errors.InvalidConfig("migration id is required")
	}
	if !migrationIDPattern.MatchString(def.ID) {
		return errors.InvalidConfig("migration id %q may only hold letters, digits, '_', '.' and '-'", def.ID)
	}

	if def.Source == nil || def.SourcePlugin() == "" {
		return errors.InvalidConfig("migration %q: source plugin is required", def.ID)
	}
	if !regs.Sources.Has(def.SourcePlugin()) {
		return errors.WithHintf(
			errors.Wrapf(errors.ErrUnknownPlugin, "migration %q: source plugin %q", def.ID, def.SourcePlugin()),
			"registered source plugins: %v", regs.Sources.IDs())
	}
	if def.Destination == nil || def.DestinationPlugin() == "" {
		return errors.InvalidConfig("migration %q: destination plugin is required", def.ID)
	}
	if !regs.Destinations.Has(def.DestinationPlugin()) {
		return errors.WithHintf(
			errors.Wrapf(errors.ErrUnknownPlugin, "migration %q: destination plugin %q", def.ID, def.DestinationPlugin()),
			"registered destination plugins: %v", regs.Destinations.IDs())
	}

	seen := make(map[string]bool, len(def.Process))
	for _, fp := range def.Process {
		if fp.Destination == "" {
			return errors.InvalidConfig("migration %q: empty destination field name", def.ID)
		}
		if seen[fp.Destination] {
			return errors.InvalidConfig("migration %q: field %q is processed twice", def.ID, fp.Destination)
		}
		seen[fp.Destination] = true
		if len(fp.Steps) == 0 {
			return errors.InvalidConfig("migration %q: field %q has no process steps", def.ID, fp.Destination)
		}
		for i, s := range fp.Steps {
			if s.Plugin == "" {
				return errors.InvalidConfig("migration %q: field %q step %d: plugin is required", def.ID, fp.Destination, i)
			}
			if !regs.Process.Has(s.Plugin) {
				return errors.WithHintf(
					errors.Wrapf(errors.ErrUnknownPlugin, "migration %q: field %q: process plugin %q", def.ID, fp.Destination, s.Plugin),
					"registered process plugins: %v", regs.Process.IDs())
			}
		}
	}

	for _, dep := range append(append([]string(nil), def.Dependencies.Required...), def.Dependencies.Optional...) {
		if dep == def.ID {
			return errors.InvalidConfig("migration %q depends on itself", def.ID)
		}
	}
	return nil
}
