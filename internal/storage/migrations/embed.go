package migrations

import "embed"

// PostgresFS embeds the PostgreSQL migration templates.
// Table names are template fields, see RenderPostgres.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
