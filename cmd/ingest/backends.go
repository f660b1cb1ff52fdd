package main

import (
	"context"
	"fmt"

	"wow-auction-lab/internal/config"
	"wow-auction-lab/internal/storage"
	chstore "wow-auction-lab/internal/storage/clickhouse"
	"wow-auction-lab/internal/storage/memory"
	"wow-auction-lab/internal/storage/migrations"
	"wow-auction-lab/internal/storage/sqlite"
)

func openClickhouseStatistics(ctx context.Context, dsn string) (storage.StatisticsStore, func(), error) {
	conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	return chstore.NewStatisticsStore(conn), func() { conn.Close() }, nil
}

// openRunStore opens the run ledger. Without a SQLite path it lives for the process lifetime only.
func openRunStore(cfg *config.Config) (storage.RunStore, func(), error) {
	if cfg.SQLitePath == "" {
		return memory.NewRunStore(), func() {}, nil
	}
	rs, err := sqlite.NewRunStore(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open run ledger: %w", err)
	}
	return rs, func() { rs.Close() }, nil
}
