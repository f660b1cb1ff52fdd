package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"wow-auction-lab/internal/config"
	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/feed"
	"wow-auction-lab/internal/ingestion"
	"wow-auction-lab/internal/logging"
	"wow-auction-lab/internal/observability"
)

const usage = `Usage: ingest <command> [flags]

Commands:
  pull      download the current snapshot and ingest it unless already stored
  pull_new  ingest the current snapshot only if it has not been resolved yet
  runs      list recent ingestion runs

Run "ingest <command> -h" for the flags of a command.
`

var errNoRunLedger = errors.New("runs needs a SQLite run ledger (set -sqlite-path or SQLITE_PATH)")

// cliFlags holds command line overrides. Empty values leave the loaded config untouched.
type cliFlags struct {
	configPath    string
	apiKey        string
	realm         string
	region        string
	baseURL       string
	locale        string
	postgresDSN   string
	clickhouseDSN string
	sqlitePath    string
	archiveDir    string
	s3Bucket      string
	concurrency   int
	metricsAddr   string
	logPath       string
	verbose       bool
	useMemory     bool
	limit         int
}

func (f *cliFlags) register(fs *flag.FlagSet, withFeed bool) {
	fs.StringVar(&f.configPath, "config", "", "YAML config file (default "+config.DefaultPath+" if present)")
	fs.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite run ledger path")
	fs.StringVar(&f.logPath, "log", "", "Also write logs to this file (rotated at 2MB)")
	if !withFeed {
		return
	}
	fs.BoolVar(&f.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL and SQLite")
	fs.StringVar(&f.apiKey, "apikey", "", "Feed API key (or WOW_API_KEY)")
	fs.StringVar(&f.realm, "realm", "", "Realm slug")
	fs.StringVar(&f.region, "region", "", "API region (us, eu, kr, tw)")
	fs.StringVar(&f.baseURL, "base-url", "", "API base URL, overrides -region")
	fs.StringVar(&f.locale, "locale", "", "Locale for item documents")
	fs.StringVar(&f.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	fs.StringVar(&f.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string for item statistics (optional)")
	fs.StringVar(&f.archiveDir, "archive-dir", "", "Directory for raw snapshot bodies (optional)")
	fs.StringVar(&f.s3Bucket, "s3-bucket", "", "S3 bucket for raw snapshot bodies (optional)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "Concurrent item metadata fetches")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (\"off\" to disable)")
	fs.BoolVar(&f.verbose, "verbose", false, "Log per-item detail")
}

func (f *cliFlags) apply(cfg *config.Config) {
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Feed.APIKey, f.apiKey)
	override(&cfg.Feed.Realm, f.realm)
	override(&cfg.Feed.Region, f.region)
	override(&cfg.Feed.BaseURL, f.baseURL)
	override(&cfg.Feed.Locale, f.locale)
	override(&cfg.Postgres.DSN, f.postgresDSN)
	override(&cfg.ClickHouse.DSN, f.clickhouseDSN)
	override(&cfg.SQLitePath, f.sqlitePath)
	override(&cfg.Archive.Dir, f.archiveDir)
	override(&cfg.Archive.S3.Bucket, f.s3Bucket)
	override(&cfg.MetricsAddr, f.metricsAddr)
	override(&cfg.LogPath, f.logPath)
	if f.concurrency > 0 {
		cfg.Backfill.Concurrency = f.concurrency
	}
	if f.verbose {
		cfg.Verbose = true
	}
	if cfg.MetricsAddr == "off" {
		cfg.MetricsAddr = ""
	}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	var flags cliFlags
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	switch command {
	case "pull", "pull_new":
		flags.register(fs, true)
	case "runs":
		flags.register(fs, false)
		fs.IntVar(&flags.limit, "limit", 20, "Number of runs to list")
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", command, usage)
		os.Exit(2)
	}
	_ = fs.Parse(os.Args[2:])

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		logger.Fatalf("Load config: %v", err)
	}
	flags.apply(cfg)

	if cfg.LogPath != "" {
		rw, err := logging.Setup(cfg.LogPath)
		if err != nil {
			logger.Fatalf("Open log file: %v", err)
		}
		defer rw.Close()
		logger.SetOutput(rw.Tee(os.Stdout))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	switch command {
	case "runs":
		err = listRuns(ctx, cfg, flags.limit)
	default:
		err = runPull(ctx, logger, cfg, domain.PullMode(command), flags.useMemory)
	}

	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Error: %v", err)
	}
}

// runPull wires the pipeline from cfg and executes one run.
func runPull(ctx context.Context, logger *log.Logger, cfg *config.Config, mode domain.PullMode, useMemory bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(logger, cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	st, err := openStores(ctx, logger, cfg, useMemory)
	if err != nil {
		return err
	}
	defer st.Close()

	archiver, err := buildArchiver(ctx, cfg)
	if err != nil {
		return err
	}

	client := feed.NewClient(cfg.Feed.Realm, cfg.Feed.APIKey,
		feed.WithBaseURL(cfg.Feed.URL()),
		feed.WithLocale(cfg.Feed.Locale),
		feed.WithTimeout(cfg.Feed.Timeout),
		feed.WithMaxRetries(cfg.Feed.MaxRetries),
	)

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Locator:   ingestion.NewLocator(ingestion.LocatorOptions{Source: client, Logger: logger}),
		Snapshots: client,
		Backfiller: ingestion.NewItemBackfiller(ingestion.BackfillOptions{
			Source:      client,
			Store:       st.items,
			Concurrency: cfg.Backfill.Concurrency,
			Logger:      logger,
			Verbose:     cfg.Verbose,
		}),
		AuctionStore:    st.auctions,
		SnapshotStore:   st.snapshots,
		StatisticsStore: st.statistics,
		RunStore:        st.runs,
		Archiver:        archiver,
		Realm:           cfg.Feed.Realm,
		Logger:          logger,
		Verbose:         cfg.Verbose,
	})

	logger.Printf("Starting %s for realm %s", mode, cfg.Feed.Realm)
	result, err := runner.Pull(ctx, mode)
	if err != nil {
		return err
	}

	if result.NoUpdate() {
		logger.Printf("No update: snapshot %d already resolved (%s)", result.Snapshot.Timestamp, result.Duration.Round(time.Millisecond))
		return nil
	}
	logger.Printf("Run %s completed in %s: %d auctions, %d items fetched, %d not found, %d failed, %d statistics",
		result.RunID, result.Duration.Round(time.Millisecond),
		result.AuctionsStored, result.Backfill.Fetched, result.Backfill.NotFound, result.Backfill.Failed,
		result.StatisticsStored)
	return nil
}

// buildArchiver combines the configured archive targets, nil when none are set.
func buildArchiver(ctx context.Context, cfg *config.Config) (ingestion.Archiver, error) {
	var targets ingestion.MultiArchiver

	if cfg.Archive.Dir != "" {
		fa, err := ingestion.NewFileArchiver(cfg.Archive.Dir)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fa)
	}

	if s3cfg := cfg.Archive.S3; s3cfg.Enabled() {
		sa, err := ingestion.NewS3Archiver(ctx, ingestion.S3Config{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			Prefix:          s3cfg.Prefix,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create s3 archiver: %w", err)
		}
		targets = append(targets, sa)
	}

	switch len(targets) {
	case 0:
		return nil, nil
	case 1:
		return targets[0], nil
	default:
		return targets, nil
	}
}

func startMetricsServer(logger *log.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("Metrics server error: %v", err)
		}
	}()
	return srv
}

// listRuns prints the most recent runs from the SQLite run ledger.
func listRuns(ctx context.Context, cfg *config.Config, limit int) error {
	if cfg.SQLitePath == "" {
		return errNoRunLedger
	}
	runs, closeFn, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	list, err := runs.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tMODE\tSTATUS\tSNAPSHOT\tAUCTIONS\tITEMS\tSTATS\tDURATION\tERROR")
	for _, r := range list {
		duration := "-"
		if r.FinishedAt > 0 {
			duration = (time.Duration(r.FinishedAt-r.StartedAt) * time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			time.UnixMilli(r.StartedAt).Format(time.RFC3339),
			r.Mode, r.Status, r.SnapshotTimestamp,
			r.AuctionsStored, r.ItemsFetched, r.StatisticsStored,
			duration, r.Error)
	}
	return tw.Flush()
}
