package destination

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"go-migrate-pipeline/internal/errors"
	"go-migrate-pipeline/internal/logger"
	"go-migrate-pipeline/internal/model"
	"go-migrate-pipeline/internal/plugin"
	"go-migrate-pipeline/pkg/utils"
)

// table writes rows into a table of the target database, keyed by one column.
type table struct {
	db    *sql.DB
	table string
	key   string
	log   *zap.SugaredLogger
}

func newTable(cfg plugin.Config, env plugin.Env) (Destination, error) {
	name, err := cfg.RequiredString("table")
	if err != nil {
		return nil, err
	}
	if err := checkIdentifier("table", name); err != nil {
		return nil, err
	}
	key, err := cfg.String("key", "id")
	if err != nil {
		return nil, err
	}
	if err := checkIdentifier("key", key); err != nil {
		return nil, err
	}
	if env.DB == nil {
		return nil, errors.InvalidConfig("table destination needs a database connection")
	}
	return &table{
		db:    env.DB,
		table: name,
		key:   key,
		log:   logger.OrNop(env.Logger).With("table", name),
	}, nil
}

func (t *table) PluginID() string { return "table" }
func (t *table) IDs() []string    { return []string{t.key} }

// Fields reads the table's columns.
func (t *table) Fields() map[string]string {
	out := make(map[string]string)
	rows, err := t.db.Query(`SELECT name, type FROM pragma_table_info(?)`, t.table)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var name, typ string
		if rows.Scan(&name, &typ) == nil {
			out[name] = strings.ToLower(typ)
		}
	}
	return out
}

func (t *table) exists(ctx context.Context, key interface{}) (bool, error) {
	var one int
	err := t.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+quote(t.table)+` WHERE `+quote(t.key)+` = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "look up %s.%s", t.table, t.key)
	}
	return true, nil
}

func (t *table) Import(ctx context.Context, row *model.Row, previous model.Key) (ImportResult, error) {
	var (
		cols []string
		args []interface{}
	)
	values := row.DestinationValues()
	for _, f := range row.DestinationFields() {
		if err := checkIdentifier("column", f); err != nil {
			return ImportResult{}, err
		}
		v, err := columnValue(values[f])
		if err != nil {
			return ImportResult{}, errors.Wrapf(err, "column %q", f)
		}
		cols = append(cols, f)
		args = append(args, v)
	}

	keyValue, hasKey := values[t.key]
	if !hasKey || utils.IsEmpty(keyValue) {
		if len(previous) == 1 {
			keyValue, hasKey = previous[0], true
		} else {
			hasKey = false
		}
	}

	if !hasKey {
		cols, args = withoutKey(cols, args, t.key)
		return t.insert(ctx, cols, args)
	}

	found, err := t.exists(ctx, keyValue)
	if err != nil {
		return ImportResult{}, err
	}
	if !found {
		cols, args = withKey(cols, args, t.key, keyValue)
		res, err := t.insert(ctx, cols, args)
		if err != nil {
			return res, err
		}
		return ImportResult{Key: model.KeyOf(keyValue), Rollback: model.RollbackDelete}, nil
	}

	if err := t.update(ctx, cols, args, keyValue); err != nil {
		return ImportResult{}, err
	}
	action := model.RollbackDelete
	if len(previous) == 0 {
		// The record was there before any run of this migration.
		action = model.RollbackPreserve
	}
	return ImportResult{Key: model.KeyOf(keyValue), Rollback: action}, nil
}

// withKey sets the key column, replacing an empty value from the row.
func withKey(cols []string, args []interface{}, key string, value interface{}) ([]string, []interface{}) {
	for i, c := range cols {
		if c == key {
			args[i] = value
			return cols, args
		}
	}
	return append(cols, key), append(args, value)
}

func withoutKey(cols []string, args []interface{}, key string) ([]string, []interface{}) {
	for i, c := range cols {
		if c == key {
			return append(cols[:i:i], cols[i+1:]...), append(args[:i:i], args[i+1:]...)
		}
	}
	return cols, args
}

func (t *table) insert(ctx context.Context, cols []string, args []interface{}) (ImportResult, error) {
	var q string
	if len(cols) == 0 {
		q = `INSERT INTO ` + quote(t.table) + ` DEFAULT VALUES`
	} else {
		quoted := make([]string, len(cols))
		for i, c := range cols {
			quoted[i] = quote(c)
		}
		q = `INSERT INTO ` + quote(t.table) + ` (` + strings.Join(quoted, ", ") + `) VALUES (` +
			strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + `)`
	}
	res, err := t.db.ExecContext(ctx, q, args...)
	if err != nil {
		return ImportResult{}, errors.Wrapf(err, "insert into %s", t.table)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "read inserted id")
	}
	t.log.Debugw("Inserted row", "id", id)
	return ImportResult{Key: model.KeyOf(id), Rollback: model.RollbackDelete}, nil
}

func (t *table) update(ctx context.Context, cols []string, args []interface{}, key interface{}) error {
	var sets []string
	var vals []interface{}
	for i, c := range cols {
		if c == t.key {
			continue
		}
		sets = append(sets, quote(c)+` = ?`)
		vals = append(vals, args[i])
	}
	if len(sets) == 0 {
		return nil
	}
	vals = append(vals, key)
	_, err := t.db.ExecContext(ctx,
		`UPDATE `+quote(t.table)+` SET `+strings.Join(sets, ", ")+` WHERE `+quote(t.key)+` = ?`, vals...)
	if err != nil {
		return errors.Wrapf(err, "update %s", t.table)
	}
	return nil
}

func (t *table) Rollback(ctx context.Context, key model.Key) error {
	if len(key) != 1 {
		return errors.Newf("table destination expects a single-column key, got %v", key)
	}
	res, err := t.db.ExecContext(ctx,
		`DELETE FROM `+quote(t.table)+` WHERE `+quote(t.key)+` = ?`, key[0])
	if err != nil {
		return errors.Wrapf(err, "delete %s from %s", key, t.table)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		t.log.Debugw("Row already gone", "key", key.String())
	}
	return nil
}
