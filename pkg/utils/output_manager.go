package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go-migrate-pipeline/internal/errors"
)

// OutputManager lays out per-migration output directories for file based
// destinations.
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName reduces s to characters that are safe in a single path segment.
func SafeName(s string) string {
	s = unsafeName.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "_"
	}
	return s
}

// MigrationDir returns the output directory of a migration, creating it when missing.
func (om *OutputManager) MigrationDir(migrationID string) (string, error) {
	dir := filepath.Join(om.BaseOutputDir, SafeName(migrationID))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create migration output directory")
	}

	return dir, nil
}

// RecordPath returns the file that holds the record with the given key.
func (om *OutputManager) RecordPath(migrationID, key, ext string) string {
	return filepath.Join(om.BaseOutputDir, SafeName(migrationID), SafeName(key)+ext)
}

// RemoveRecord deletes a record file. A missing file is not an error.
func (om *OutputManager) RemoveRecord(migrationID, key, ext string) error {
	err := os.Remove(om.RecordPath(migrationID, key, ext))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RecordExists reports whether a record file is present.
func (om *OutputManager) RecordExists(migrationID, key, ext string) bool {
	_, err := os.Stat(om.RecordPath(migrationID, key, ext))
	return err == nil
}
