package store

import (
	"database/sql"
	"embed"
	"path"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/logger"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens a SQLite database with WAL, foreign keys and a busy timeout.
func Open(dbPath string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrNop(log)
	log.Debugw("Opening database", "path", dbPath)

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// Also set through the DSN for pooled connections.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", p)
		}
	}

	log.Infow("Database opened", "path", dbPath)
	return db, nil
}

func dsn(dbPath string) string {
	if strings.Contains(dbPath, "?") || dbPath == ":memory:" {
		return dbPath
	}
	return "file:" + dbPath + "?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"
}

// OpenWithMigrations opens the database and brings its schema up to date.
func OpenWithMigrations(dbPath string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(dbPath, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "migrate %s", dbPath)
	}
	return db, nil
}

// Migrate applies every embedded schema migration not yet recorded in
// schema_migrations.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		version := strings.SplitN(name, "_", 2)[0]

		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", name)
			}
		} else if exists {
			log.Debugw("Skipping migration", "migration", name)
			continue
		}

		body, err := migrations.ReadFile(path.Join("migrations", name))
		if err != nil {
			return errors.Wrapf(err, "read %s", name)
		}

		log.Infow("Applying migration", "migration", name, "version", version)
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin tx for %s", name)
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "execute %s", name)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record %s", name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit %s", name)
		}
		applied++
	}

	log.Infow("Migrations complete", "total", len(files), "applied", applied)
	return nil
}
