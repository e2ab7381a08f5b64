package config

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
)

// IsDefinitionFile reports whether path looks like a migration definition.
func IsDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

// LoadDefinitions reads every *.yml / *.yaml file under dir, recursively,
// one migration per file. Files come back sorted by path.
func LoadDefinitions(dir string, log *zap.SugaredLogger) ([]*model.MigrationDefinition, error) {
	log = logger.OrNop(log)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "migrations dir %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.InvalidConfig("migrations dir %s is not a directory", dir)
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsDefinitionFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", dir)
	}
	sort.Strings(paths)

	defs := make([]*model.MigrationDefinition, 0, len(paths))
	for _, p := range paths {
		def, err := LoadDefinitionFile(p)
		if err != nil {
			return nil, err
		}
		log.Debugw("Loaded migration definition", "migration", def.ID, "file", p)
		defs = append(defs, def)
	}
	log.Infow("Migration definitions loaded", "dir", dir, "count", len(defs))
	return defs, nil
}

// LoadDefinitionFile reads one definition. A file without an id takes its
// base name as id.
func LoadDefinitionFile(path string) (*model.MigrationDefinition, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	def, err := ParseDefinition(b)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	def.File = path
	return def, nil
}

// ParseDefinition decodes a YAML definition. Unknown top level keys are
// rejected so that typos do not silently drop configuration.
func ParseDefinition(b []byte) (*model.MigrationDefinition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var def model.MigrationDefinition
	if err := dec.Decode(&def); err != nil {
		if err == io.EOF {
			return nil, errors.InvalidConfig("empty migration definition")
		}
		return nil, errors.Mark(errors.Wrap(err, "parse migration definition"), errors.ErrInvalidConfig)
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.InvalidConfig("a definition file holds exactly one migration")
	}
	return &def, nil
}
