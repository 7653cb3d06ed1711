package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo brings the live schema in line with the target schema in schema.sql.
//
// The migration is declarative: the target schema is loaded into an attached
// in-memory database and the live schema is diffed against it. New tables are
// created, deleted tables dropped, and changed tables rebuilt with the 12-step
// procedure from https://www.sqlite.org/lang_altertable.html#otheralter.
// Indexes and triggers are synchronised the same way.
//
// Inspired by https://david.rothlis.net/declarative-schema-migration-for-sqlite/
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) error {
	start := time.Now()

	detach, err := db.attachTargetSchema(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach target schema: %w", err)
	}
	defer detach()

	// Table rebuilds copy data between tables that reference each other,
	// so foreign keys stay off for the duration of the migration.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, ferr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); ferr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to re-enable foreign keys",
				slog.Any("error", ferr))
		}
	}()

	var tx *sql.Tx
	if tx, err = db.ReadWrite.BeginTx(ctx, nil); err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback migration",
				slog.Any("error", rerr))
		}
	}()

	if err = db.syncTables(ctx, tx); err != nil {
		return fmt.Errorf("sync tables: %w", err)
	}
	for _, typ := range []string{"index", "trigger"} {
		if err = db.syncAncillary(ctx, tx, typ); err != nil {
			return fmt.Errorf("sync %s entries: %w", typ, err)
		}
	}

	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database",
		slog.Duration("duration", time.Since(start)))
	return nil
}

// attachTargetSchema loads schemaDefinition into a throwaway in-memory database
// and attaches it as schemaTarget. The returned function detaches it.
func (db *Database) attachTargetSchema(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open target database: %w", err)
	}
	defer func() {
		if cerr := target.Close(); cerr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close target database",
				slog.Any("error", cerr))
		}
	}()
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, fmt.Errorf("apply target schema: %w", err)
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS schemaTarget", dsn); err != nil {
		return nil, fmt.Errorf("attach: %w", err)
	}
	return func() {
		if _, derr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE schemaTarget"); derr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach target database",
				slog.Any("error", derr))
		}
	}, nil
}

// syncTables drops deleted tables, creates new ones, and rebuilds tables whose
// definition changed.
func (db *Database) syncTables(ctx context.Context, tx *sql.Tx) error {
	deleted, err := db.queryColumn(ctx, tx, `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table'
  AND target.type IS NULL
  AND live.name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("query deleted tables: %w", err)
	}
	for _, table := range deleted {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", table)); err != nil {
			return fmt.Errorf("DROP TABLE %s: %w", table, err)
		}
	}

	created, err := db.queryColumn(ctx, tx, `SELECT target.sql
FROM sqlite_schema AS live
         RIGHT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE target.type = 'table'
  AND live.type IS NULL
  AND target.name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("query new tables: %w", err)
	}
	for _, createSQL := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", createSQL))
		if _, err = tx.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// The table rename operation adds double quotes around the table name,
	// so quotes are stripped for this diff.
	changed, err := db.queryDiffs(ctx, tx, `SELECT live.name, live.sql, target.sql
FROM sqlite_schema AS live
         JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = 'table'
  AND live.name NOT LIKE 'sqlite_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(target.sql, '"', '')`)
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, table := range changed {
		if err = db.rebuildTable(ctx, tx, table); err != nil {
			return fmt.Errorf("rebuild table %s: %w", table.name, err)
		}
	}
	return nil
}

// rebuildTable migrates one changed table: create under a temporary name, copy
// the common columns over, drop the old table, rename.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, table schemaDiff) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrating table",
		slog.String("table", table.name),
		slog.String("live_sql", table.liveSQL),
		slog.String("target_sql", table.targetSQL))

	tempName := table.name + "_migration_temp"
	createSQL := strings.Replace(table.targetSQL, table.name, tempName, 1)
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create temporary table: %w", err)
	}

	// Column names are double-quoted to handle names that are SQLite keywords.
	commonColumns, err := db.queryColumn(ctx, tx, `SELECT '"' || target.name || '"'
FROM PRAGMA_TABLE_INFO(:table_name) AS live
JOIN PRAGMA_TABLE_INFO(:table_name, 'schemaTarget') AS target ON target.name = live.name`,
		sql.Named("table_name", table.name))
	if err != nil {
		return fmt.Errorf("query common columns: %w", err)
	}
	common := strings.Join(commonColumns, ", ")
	copySQL := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;", //nolint:gosec // identifiers from sqlite_schema
		tempName, common, common, table.name)
	if _, err = tx.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s;", table.name)); err != nil {
		return fmt.Errorf("drop old table: %w", err)
	}
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", tempName, table.name)); err != nil {
		return fmt.Errorf("rename table: %w", err)
	}
	return nil
}

// syncAncillary synchronises indexes or triggers between the live and target schema.
func (db *Database) syncAncillary(ctx context.Context, tx *sql.Tx, typ string) error {
	logger := db.logger.With(slog.String("schemaType", typ))

	deleted, err := db.queryColumn(ctx, tx, `SELECT live.name
FROM sqlite_schema AS live
         LEFT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND target.type IS NULL
  AND live.name NOT LIKE 'sqlite_%'`, typ)
	if err != nil {
		return fmt.Errorf("query deleted: %w", err)
	}

	changed, err := db.queryDiffs(ctx, tx, `SELECT live.name, live.sql, target.sql
FROM sqlite_schema AS live
         JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE live.type = ?
  AND live.name NOT LIKE 'sqlite_%'
  AND live.sql <> target.sql`, typ)
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	for _, diff := range changed {
		deleted = append(deleted, diff.name)
	}

	for _, name := range deleted {
		dropSQL := fmt.Sprintf("DROP %s %s;", strings.ToUpper(typ), name)
		logger.LogAttrs(ctx, slog.LevelInfo, "dropping", slog.String("query", dropSQL))
		if _, err = tx.ExecContext(ctx, dropSQL); err != nil {
			return fmt.Errorf("drop %s %s: %w", typ, name, err)
		}
	}

	created, err := db.queryColumn(ctx, tx, `SELECT target.sql
FROM sqlite_schema AS live
         RIGHT JOIN schemaTarget.sqlite_schema AS target ON live.name = target.name AND live.type = target.type
WHERE target.type = ?
  AND live.type IS NULL
  AND target.name NOT LIKE 'sqlite_%'`, typ)
	if err != nil {
		return fmt.Errorf("query created: %w", err)
	}
	for _, diff := range changed {
		created = append(created, diff.targetSQL)
	}
	for _, createSQL := range created {
		logger.LogAttrs(ctx, slog.LevelInfo, "creating", slog.String("query", createSQL))
		if _, err = tx.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("create %s: %w", typ, err)
		}
	}
	return nil
}

type schemaDiff struct {
	name      string
	liveSQL   string
	targetSQL string
}

// queryDiffs returns (name, live sql, target sql) triples for the given query.
func (db *Database) queryDiffs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]schemaDiff, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer db.closeRows(rows)
	var diffs []schemaDiff
	for rows.Next() {
		var diff schemaDiff
		if err = rows.Scan(&diff.name, &diff.liveSQL, &diff.targetSQL); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		diffs = append(diffs, diff)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return diffs, nil
}

// queryColumn returns the single string column selected by the query.
func (db *Database) queryColumn(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer db.closeRows(rows)
	var results []string
	for rows.Next() {
		var result string
		if err = rows.Scan(&result); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, result)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return results, nil
}

func (db *Database) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		db.logger.Error("could not close rows", slog.Any("error", err))
	}
}
