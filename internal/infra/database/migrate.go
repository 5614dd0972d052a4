package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
)

//go:embed migrations
var migrations embed.FS

// Scripts returns the migration scripts for a dialect.
func Scripts(d Dialect) (fs.FS, error) {
	return fs.Sub(migrations, "migrations/"+string(d))
}

// Migrate runs the scripts in fsys that have not been applied yet, in lexical order.
// The applied count is tracked in the schema_version table.
func Migrate(ctx context.Context, db *sql.DB, d Dialect, fsys fs.FS) (err error) {
	scripts, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list scripts: %w", err)
	}
	sort.Strings(scripts)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	var oldVer int
	if err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&oldVer); err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	currVer := len(scripts)
	if oldVer >= currVer {
		// There are no scripts to run.
		return tx.Commit()
	}

	for _, script := range scripts[oldVer:] {
		buf, err := fs.ReadFile(fsys, script)
		if err != nil {
			return fmt.Errorf("read %s: %w", script, err)
		}
		for i, stmt := range splitStatements(string(buf)) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute %s, stmt %d: %w", script, i, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, rebind(d, `INSERT INTO schema_version (version) VALUES ($1)`), currVer); err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return tx.Commit()
}

func splitStatements(script string) []string {
	var stmts []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

var pgPlaceholder = regexp.MustCompile(`\$(\d+)`)

// rebind turns $N placeholders into SQLite's ?N form.
func rebind(d Dialect, query string) string {
	if d != DialectSQLite {
		return query
	}
	return pgPlaceholder.ReplaceAllString(query, "?$1")
}
