package destination

import (
	"context"
	"encoding/json"
	"os"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

const jsonExt = ".json"

// jsonFiles writes each row as a pretty-printed JSON file named after its key.
type jsonFiles struct {
	output      *utils.OutputManager
	migrationID string
	key         string
	fields      map[string]string
}

func newJSONFiles(cfg plugin.Config, env plugin.Env) (Destination, error) {
	key, err := cfg.String("key", "id")
	if err != nil {
		return nil, err
	}
	if env.Output == nil {
		return nil, errors.InvalidConfig("json destination needs an output directory")
	}
	if env.MigrationID == "" {
		return nil, errors.InvalidConfig("json destination needs a migration id")
	}
	names, err := cfg.Strings("fields")
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(names))
	for _, n := range names {
		fields[n] = n
	}
	return &jsonFiles{output: env.Output, migrationID: env.MigrationID, key: key, fields: fields}, nil
}

func (d *jsonFiles) PluginID() string          { return "json" }
func (d *jsonFiles) IDs() []string             { return []string{d.key} }
func (d *jsonFiles) Fields() map[string]string { return d.fields }

func (d *jsonFiles) Import(_ context.Context, row *model.Row, previous model.Key) (ImportResult, error) {
	v, _ := row.Destination(d.key)
	if utils.IsEmpty(v) || !utils.IsScalar(v) {
		return ImportResult{}, errors.Newf("json destination: key property %q is empty", d.key)
	}
	key := utils.ToString(v)

	action := model.RollbackDelete
	if len(previous) == 0 && d.output.RecordExists(d.migrationID, key, jsonExt) {
		action = model.RollbackPreserve
	}
	// A changed key leaves the old file behind otherwise.
	if len(previous) == 1 && previous[0] != key {
		if err := d.output.RemoveRecord(d.migrationID, previous[0], jsonExt); err != nil {
			return ImportResult{}, errors.Wrapf(err, "remove stale record %s", previous[0])
		}
	}

	if _, err := d.output.MigrationDir(d.migrationID); err != nil {
		return ImportResult{}, err
	}
	b, err := json.MarshalIndent(row.DestinationValues(), "", "  ")
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "encode record")
	}
	path := d.output.RecordPath(d.migrationID, key, jsonExt)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return ImportResult{}, errors.Wrapf(err, "write %s", path)
	}
	return ImportResult{Key: model.Key{key}, Rollback: action}, nil
}

func (d *jsonFiles) Rollback(_ context.Context, key model.Key) error {
	if len(key) != 1 {
		return errors.Newf("json destination expects a single key, got %v", key)
	}
	if err := d.output.RemoveRecord(d.migrationID, key[0], jsonExt); err != nil {
		return errors.Wrapf(err, "remove record %s", key)
	}
	return nil
}
