// Package migrate applies versioned SQL files from disk. Applied files are
// recorded in a single bookkeeping table keyed by kind, so migrations and
// seeds share the ledger without stepping on each other.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const ledgerTable = "schema_migrations"

const (
	kindMigration = "migration"
	kindSeed      = "seed"
)

// Runner applies migration and seed files against a database handle.
type Runner struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
}

// NewRunner constructs a Runner over the given directories.
func NewRunner(db *sql.DB, migrationsDir, seedsDir string) *Runner {
	return &Runner{db: db, migrationsDir: migrationsDir, seedsDir: seedsDir}
}

// Up applies every pending *.up.sql file in lexical order.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.ensureLedger(ctx); err != nil {
		return err
	}
	return r.applyPending(ctx, kindMigration, r.migrationsDir, ".up.sql")
}

// Seed applies every pending seed file once; re-running is a no-op.
func (r *Runner) Seed(ctx context.Context) error {
	if err := r.ensureLedger(ctx); err != nil {
		return err
	}
	return r.applyPending(ctx, kindSeed, r.seedsDir, ".sql")
}

// Down rolls back the most recently applied migration using its .down.sql
// counterpart.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureLedger(ctx); err != nil {
		return err
	}
	applied, err := r.applied(ctx, kindMigration)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("no migrations applied")
	}
	last := applied[len(applied)-1]
	downPath := strings.TrimSuffix(filepath.Join(r.migrationsDir, last), ".up.sql") + ".down.sql"
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := r.runFile(ctx, downPath); err != nil {
		return fmt.Errorf("rollback %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx,
		`delete from `+ledgerTable+` where kind = $1 and name = $2`, kindMigration, last)
	return err
}

// Status returns applied migration names in application order.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}
	return r.applied(ctx, kindMigration)
}

func (r *Runner) applyPending(ctx context.Context, kind, dir, suffix string) error {
	files, err := listSQL(dir, suffix)
	if err != nil {
		return err
	}
	applied, err := r.applied(ctx, kind)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}
	for _, name := range files {
		if done[name] {
			continue
		}
		if err := r.runFile(ctx, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`insert into `+ledgerTable+`(kind, name) values ($1, $2)`, kind, name); err != nil {
			return err
		}
	}
	return nil
}

// runFile executes one SQL file inside a transaction. The pgx stdlib driver
// rejects multi-statement strings, so the file is split on top-level
// semicolons first.
func (r *Runner) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(string(raw)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) ensureLedger(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		create table if not exists `+ledgerTable+` (
			kind text not null,
			name text not null,
			applied_at timestamptz not null default now(),
			primary key (kind, name)
		)`)
	return err
}

func (r *Runner) applied(ctx context.Context, kind string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`select name from `+ledgerTable+` where kind = $1 order by applied_at asc, name asc`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func listSQL(dir, suffix string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements breaks a script on semicolons outside string literals and
// drops blanks. Dollar-quoted bodies are not supported; migrations here keep
// to plain DDL.
func splitStatements(script string) []string {
	var out []string
	var buf strings.Builder
	inString := false
	for _, r := range script {
		switch {
		case r == '\'':
			inString = !inString
			buf.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(buf.String()); s != "" {
				out = append(out, s)
			}
			buf.Reset()
		default:
			buf.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(buf.String()); s != "" {
		out = append(out, s)
	}
	return out
}
