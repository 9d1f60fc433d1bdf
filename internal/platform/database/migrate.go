package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gatehouse/migrations"
)

// Migrate applies every *.up.sql file for the pool's dialect in name order.
// Statements are idempotent (IF NOT EXISTS), so running it on every start
// is safe.
func (p *Pool) Migrate(ctx context.Context) error {
	dir := string(p.dialect)
	entries, err := fs.ReadDir(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		content, err := fs.ReadFile(migrations.FS, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := p.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("execute migration %s: %w", name, err)
			}
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	var out []string
	for _, stmt := range strings.Split(sql, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
