package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"wow-auction-lab/internal/config"
	"wow-auction-lab/internal/reporting"
	"wow-auction-lab/internal/storage"
	chstore "wow-auction-lab/internal/storage/clickhouse"
	pgstore "wow-auction-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "YAML config file (default "+config.DefaultPath+" if present)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "Read statistics from ClickHouse instead of PostgreSQL")
	snapshot := flag.Int64("snapshot", 0, "Snapshot timestamp in Unix ms (0 for the latest resolved snapshot)")
	format := flag.String("format", "md", "Output format: csv, md or xlsx")
	output := flag.String("output", "", "Output file (default stdout)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	if *postgresDSN != "" {
		cfg.Postgres.DSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.ClickHouse.DSN = *clickhouseDSN
	}

	// Validate flags
	*format = strings.ToLower(*format)
	if *format != "csv" && *format != "md" && *format != "xlsx" {
		fatalf("Error: unknown format %q (csv, md, xlsx)", *format)
	}
	if cfg.Postgres.DSN == "" {
		fatalf("Error: --postgres-dsn is required")
	}
	if err := cfg.Postgres.Tables.Validate(); err != nil {
		fatalf("Error: %v", err)
	}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		fatalf("Error connecting to postgres: %v", err)
	}
	defer pool.Close()

	tables := cfg.Postgres.Tables
	var statistics storage.StatisticsStore = pgstore.NewStatisticsStore(pool, tables.Statistics)
	if cfg.ClickHouse.DSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			fatalf("Error connecting to clickhouse: %v", err)
		}
		defer conn.Close()
		statistics = chstore.NewStatisticsStore(conn)
	}

	gen := reporting.NewGenerator(
		pgstore.NewSnapshotStore(pool, tables.Snapshots),
		statistics,
		pgstore.NewItemStore(pool, tables.Items),
		cfg.Feed.Realm,
	)

	report, err := gen.Generate(ctx, *snapshot)
	if errors.Is(err, storage.ErrNotFound) {
		fatalf("No resolved snapshot found (run \"ingest pull\" first)")
	}
	if err != nil {
		fatalf("Error generating report: %v", err)
	}

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatalf("Error creating %s: %v", *output, err)
		}
		defer f.Close()
		out = f
	}

	switch *format {
	case "csv":
		_, err = io.WriteString(out, reporting.RenderCSV(report.Rows))
	case "md":
		_, err = io.WriteString(out, reporting.RenderMarkdown(report))
	case "xlsx":
		err = reporting.WriteXLSX(out, report)
	}
	if err != nil {
		fatalf("Error writing report: %v", err)
	}

	if *output != "" {
		fmt.Fprintf(os.Stderr, "Report for snapshot %d written to %s (%d items)\n",
			report.SnapshotTimestamp, *output, report.ItemCount)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
