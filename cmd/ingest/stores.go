package main

import (
	"context"
	"fmt"
	"log"

	"wow-auction-lab/internal/config"
	"wow-auction-lab/internal/storage"
	"wow-auction-lab/internal/storage/memory"
	"wow-auction-lab/internal/storage/migrations"
	pgstore "wow-auction-lab/internal/storage/postgres"
)

type stores struct {
	auctions   storage.AuctionStore
	snapshots  storage.SnapshotStore
	items      storage.ItemStore
	statistics storage.StatisticsStore
	runs       storage.RunStore
	closers    []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backends and runs their migrations.
// PostgreSQL holds auctions, markers, items and statistics; ClickHouse, when
// configured, takes over statistics. The run ledger lives in SQLite.
func openStores(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) (*stores, error) {
	if useMemory {
		logger.Println("Using in-memory storage; nothing will persist after exit")
		return &stores{
			auctions:   memory.NewAuctionStore(),
			snapshots:  memory.NewSnapshotStore(),
			items:      memory.NewItemStore(),
			statistics: memory.NewStatisticsStore(),
			runs:       memory.NewRunStore(),
		}, nil
	}

	// Require --postgres-dsn unless --use-memory is explicitly set
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	st := &stores{}

	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	st.closers = append(st.closers, pool.Close)

	tables := cfg.Postgres.Tables
	if err := migrations.RunPostgresMigrations(ctx, pool, tables); err != nil {
		st.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	st.auctions = pgstore.NewAuctionStore(pool, tables.Auctions)
	st.snapshots = pgstore.NewSnapshotStore(pool, tables.Snapshots)
	st.items = pgstore.NewItemStore(pool, tables.Items)
	st.statistics = pgstore.NewStatisticsStore(pool, tables.Statistics)

	if cfg.ClickHouse.DSN != "" {
		stats, closeFn, err := openClickhouseStatistics(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.statistics = stats
		st.closers = append(st.closers, closeFn)
		logger.Println("Item statistics stored in ClickHouse")
	}

	runs, closeFn, err := openRunStore(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	st.runs = runs
	st.closers = append(st.closers, closeFn)

	return st, nil
}
