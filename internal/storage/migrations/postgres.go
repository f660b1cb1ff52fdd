package migrations

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"wow-auction-lab/internal/storage/postgres"
)

// RunPostgresMigrations renders every embedded SQL file with the configured
// table names and applies them in lexical order.
// Migrations are expected to be idempotent.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool, tables postgres.Tables) error {
	tables = tables.WithDefaults()
	if err := tables.Validate(); err != nil {
		return err
	}

	files, err := postgresFiles()
	if err != nil {
		return err
	}

	for _, file := range files {
		sql, err := RenderPostgres(file, tables)
		if err != nil {
			return err
		}
		if strings.TrimSpace(sql) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}

	return nil
}

// RenderPostgres returns the SQL of one embedded migration with table names substituted.
func RenderPostgres(file string, tables postgres.Tables) (string, error) {
	data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", file, err)
	}

	tmpl, err := template.New(file).Option("missingkey=error").Parse(string(data))
	if err != nil {
		return "", fmt.Errorf("parse migration %s: %w", file, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tables); err != nil {
		return "", fmt.Errorf("render migration %s: %w", file, err)
	}
	return buf.String(), nil
}

func postgresFiles() ([]string, error) {
	entries, err := fs.ReadDir(PostgresFS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("read embedded postgres migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
