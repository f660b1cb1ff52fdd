package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wow-auction-lab/internal/domain"
	"wow-auction-lab/internal/feed"
	"wow-auction-lab/internal/idhash"
	"wow-auction-lab/internal/ingestion/stub"
	"wow-auction-lab/internal/storage"
	"wow-auction-lab/internal/storage/memory"
)

func testLogger() *log.Logger {
	if testing.Verbose() {
		return log.New(os.Stderr, "[test] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

const (
	snapshotURL = "http://feed/auction-data/wildhammer/auctions.json"
	snapshotTS  = int64(1500000000000)
)

const snapshotBody = `{
	"realms": [{"name": "Wildhammer", "slug": "wildhammer"}],
	"auctions": [
		{"auc": 1, "item": 2589, "owner": "Thrall", "ownerRealm": "Wildhammer", "bid": 100, "buyout": 200, "quantity": 2, "timeLeft": "LONG"},
		{"auc": 2, "item": 2589, "owner": "Jaina", "ownerRealm": "Wildhammer", "bid": 50, "buyout": 50, "quantity": 1, "timeLeft": "SHORT"},
		{"auc": 3, "item": 2592, "owner": "Jaina", "ownerRealm": "Wildhammer", "bid": 300, "buyout": 0, "quantity": 3, "timeLeft": "MEDIUM"},
		{"auc": 4, "item": 9999, "owner": "Rexxar", "ownerRealm": "Wildhammer", "bid": 10, "buyout": 10, "quantity": 1, "timeLeft": "VERY_LONG"}
	]
}`

type fixture struct {
	feed       *stub.StubFeed
	auctions   *memory.AuctionStore
	snapshots  *memory.SnapshotStore
	items      *memory.ItemStore
	statistics *memory.StatisticsStore
	runs       *memory.RunStore
	opts       RunnerOptions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		feed:       stub.NewStubFeed(),
		auctions:   memory.NewAuctionStore(),
		snapshots:  memory.NewSnapshotStore(),
		items:      memory.NewItemStore(),
		statistics: memory.NewStatisticsStore(),
		runs:       memory.NewRunStore(),
	}
	f.feed.Publish(snapshotURL, snapshotTS, []byte(snapshotBody))
	f.feed.AddItem(2589, `{"id":2589,"name":"Linen Cloth"}`)
	f.feed.AddItem(2592, `{"id":2592,"name":"Wool Cloth"}`)
	// 9999 is unknown to the feed

	logger := testLogger()
	f.opts = RunnerOptions{
		Locator:         NewLocator(LocatorOptions{Source: f.feed, Logger: logger}),
		Snapshots:       f.feed,
		Backfiller:      NewItemBackfiller(BackfillOptions{Source: f.feed, Store: f.items, Logger: logger}),
		AuctionStore:    f.auctions,
		SnapshotStore:   f.snapshots,
		StatisticsStore: f.statistics,
		RunStore:        f.runs,
		Realm:           "wildhammer",
		Logger:          logger,
	}
	return f
}

func (f *fixture) runner() *Runner {
	return NewRunner(f.opts)
}

func TestRunner_FirstRunResolvesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.False(t, result.NoUpdate())
	assert.Equal(t, 4, result.AuctionsStored)
	assert.Equal(t, 3, result.StatisticsStored)
	assert.Equal(t, 2, result.Backfill.Fetched)
	assert.Equal(t, 1, result.Backfill.NotFound)

	stored, err := f.auctions.GetByTimestamp(ctx, snapshotTS)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	for _, rec := range stored {
		assert.Equal(t, snapshotTS, rec.Timestamp)
	}

	stats, err := f.statistics.GetByTimestamp(ctx, snapshotTS)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	linen := stats[0]
	assert.Equal(t, int64(2589), linen.ItemID)
	assert.True(t, linen.Min.Equal(decimal.RequireFromString("0.005")))
	assert.True(t, linen.Max.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, linen.Average.Equal(decimal.RequireFromString("0.0075")))
	assert.True(t, linen.StdDev.Equal(decimal.RequireFromString("0.0025")))
	assert.Equal(t, int64(3), linen.Count)

	marker, err := f.snapshots.GetByTimestamp(ctx, snapshotTS)
	require.NoError(t, err)
	assert.Equal(t, snapshotURL, marker.URL)
	assert.Equal(t, 4, marker.AuctionCount)
	assert.Equal(t, idhash.ComputeSnapshotDigest([]byte(snapshotBody)), marker.BodyDigest)

	// Unknown item left without metadata, run still succeeded.
	_, err = f.items.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 2, f.items.Len())

	run, err := f.runs.GetByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, snapshotTS, run.SnapshotTimestamp)
	assert.Equal(t, 4, run.AuctionsStored)
	assert.Equal(t, 2, run.ItemsFetched)
	assert.NotZero(t, run.FinishedAt)
}

func TestRunner_PullNewSkipsResolvedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)
	downloads := f.feed.SnapshotCalls.Load()
	itemCalls := f.feed.ItemCalls.Load()

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)

	assert.True(t, result.NoUpdate())
	assert.Equal(t, 0, result.AuctionsStored)
	assert.Equal(t, 0, result.StatisticsStored)
	assert.Equal(t, downloads, f.feed.SnapshotCalls.Load(), "resolved snapshot must not be downloaded")
	assert.Equal(t, itemCalls, f.feed.ItemCalls.Load())

	count, _ := f.auctions.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 4, count)

	run, err := f.runs.GetByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusNoUpdate, run.Status)
}

func TestRunner_PullIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.runner().Pull(ctx, domain.PullModeAlways)
	require.NoError(t, err)
	firstAuctions, _ := f.auctions.GetByTimestamp(ctx, snapshotTS)
	firstStats, _ := f.statistics.GetByTimestamp(ctx, snapshotTS)

	result, err := f.runner().Pull(ctx, domain.PullModeAlways)
	require.NoError(t, err)
	assert.True(t, result.NoUpdate())

	secondAuctions, _ := f.auctions.GetByTimestamp(ctx, snapshotTS)
	secondStats, _ := f.statistics.GetByTimestamp(ctx, snapshotTS)

	assert.Equal(t, firstAuctions, secondAuctions)
	assert.Equal(t, firstStats, secondStats)

	markers, _ := f.snapshots.List(ctx, 0)
	assert.Len(t, markers, 1)
}

func TestRunner_ResumesPartialSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A previous run stored the auctions and died before statistics.
	records, err := feed.ParseSnapshot([]byte(snapshotBody), snapshotTS)
	require.NoError(t, err)
	require.NoError(t, f.auctions.InsertBulk(ctx, records))

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.True(t, result.Resumed)
	assert.Equal(t, 0, result.AuctionsStored)
	assert.Equal(t, 3, result.StatisticsStored)

	count, _ := f.auctions.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 4, count, "auctions must not be duplicated")

	exists, _ := f.snapshots.Exists(ctx, snapshotTS)
	assert.True(t, exists)
}

func TestRunner_StatisticsAlreadyPresentAreKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.statistics.InsertBulk(ctx, []*domain.ItemStatistics{{ItemID: 2589, Timestamp: snapshotTS, Count: 99}}))

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)
	assert.Equal(t, 0, result.StatisticsStored)

	stats, _ := f.statistics.GetByTimestamp(ctx, snapshotTS)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(99), stats[0].Count)
}

func TestRunner_LocatorFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.feed.SetIndexError(errors.New("503 service unavailable"))

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
	assert.Equal(t, domain.RunStatusFailed, result.Status)

	count, _ := f.auctions.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, f.items.Len())

	run, err := f.runs.GetByID(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "auction feed unavailable")
}

func TestRunner_NoSnapshotsPublished(t *testing.T) {
	f := newFixture(t)
	f.feed.ClearIndex()

	_, err := f.runner().Pull(context.Background(), domain.PullModeAlways)
	assert.ErrorIs(t, err, ErrNoSnapshotsPublished)
}

func TestRunner_DownloadFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.opts.Snapshots = missingSnapshots{}

	_, err := f.runner().Pull(ctx, domain.PullModeNew)
	assert.ErrorIs(t, err, ErrDownloadFailed)

	count, _ := f.auctions.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 0, count)
}

func TestRunner_UndecodableSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.feed.Publish(snapshotURL, snapshotTS, []byte(`<html>maintenance</html>`))
	arch := &recordingArchiver{}
	f.opts.Archiver = arch

	_, err := f.runner().Pull(ctx, domain.PullModeNew)
	assert.ErrorIs(t, err, ErrDownloadFailed)

	// The raw body is kept even though it could not be decoded.
	require.Len(t, arch.bodies, 1)
	assert.Equal(t, `<html>maintenance</html>`, string(arch.bodies[0]))

	count, _ := f.auctions.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 0, count)
}

func TestRunner_EmptySnapshotIsResolvedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.feed.Publish(snapshotURL, snapshotTS, []byte(`{"auctions":[]}`))

	first, err := f.runner().Pull(ctx, domain.PullModeAlways)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, first.Status)
	assert.Equal(t, 0, first.AuctionsStored)

	second, err := f.runner().Pull(ctx, domain.PullModeAlways)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusNoUpdate, second.Status)
	assert.True(t, second.NoUpdate())
	assert.Nil(t, second.Backfill)

	marker, err := f.snapshots.GetByTimestamp(ctx, snapshotTS)
	require.NoError(t, err)
	assert.Equal(t, 0, marker.AuctionCount)
}

type missingSnapshots struct{}

func (missingSnapshots) GetSnapshot(_ context.Context, url string) ([]byte, error) {
	return nil, &feed.StatusError{URL: url, Code: http.StatusNotFound}
}

type failingAuctionStore struct {
	*memory.AuctionStore
}

func (failingAuctionStore) InsertBulk(context.Context, []*domain.AuctionRecord) error {
	return errors.New("write concern failed")
}

func TestRunner_PersistenceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.opts.AuctionStore = failingAuctionStore{memory.NewAuctionStore()}

	_, err := f.runner().Pull(ctx, domain.PullModeNew)
	assert.ErrorIs(t, err, ErrPersistenceFailed)

	exists, _ := f.snapshots.Exists(ctx, snapshotTS)
	assert.False(t, exists)
	count, _ := f.statistics.CountByTimestamp(ctx, snapshotTS)
	assert.Equal(t, 0, count)
}

func TestRunner_ZeroQuantityDoesNotCrash(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.feed.Publish(snapshotURL, snapshotTS, []byte(`{"auctions":[
		{"auc": 1, "item": 2589, "bid": 100, "buyout": 100, "quantity": 0},
		{"auc": 2, "item": 2589, "bid": 100, "buyout": 100, "quantity": 1},
		{"auc": 3, "item": 2592, "bid": 100, "buyout": 100, "quantity": 0}
	]}`))

	result, err := f.runner().Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RecordsSkipped)
	assert.Equal(t, 3, result.AuctionsStored)

	stats, _ := f.statistics.GetByTimestamp(ctx, snapshotTS)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Count)

	// 2592 has no statistics row but was still seen in the snapshot.
	marker, err := f.snapshots.GetByTimestamp(ctx, snapshotTS)
	require.NoError(t, err)
	assert.Equal(t, 2, marker.ItemCount)
	assert.Equal(t, 1, marker.StatisticsCount)
}

type recordingArchiver struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (a *recordingArchiver) Archive(_ context.Context, key string, body []byte) error {
	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, body)
	return a.err
}

func TestRunner_ArchivesRawBody(t *testing.T) {
	f := newFixture(t)
	arch := &recordingArchiver{}
	f.opts.Archiver = arch
	f.opts.Now = func() time.Time { return time.Date(2017, 7, 14, 2, 40, 0, 0, time.Local) }

	_, err := f.runner().Pull(context.Background(), domain.PullModeNew)
	require.NoError(t, err)

	require.Len(t, arch.keys, 1)
	assert.Equal(t, "20170714T024000.json", arch.keys[0])
	assert.Equal(t, snapshotBody, string(arch.bodies[0]))
}

func TestRunner_ArchiveFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.opts.Archiver = &recordingArchiver{err: errors.New("disk full")}

	result, err := f.runner().Pull(context.Background(), domain.PullModeNew)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Status)
}

func TestRunner_InvalidMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.runner().Pull(context.Background(), domain.PullMode("pull_all"))
	assert.Error(t, err)
}

func TestRunner_EndToEndOverHTTP(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/wow/auction/data/wildhammer", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"files":[{"url":"%s/auction-data/auctions.json","lastModified":%d}]}`, srvURL, snapshotTS)
	})
	mux.HandleFunc("/auction-data/auctions.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, snapshotBody)
	})
	mux.HandleFunc("/wow/item/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wow/item/2589":
			_, _ = io.WriteString(w, `{"id":2589,"name":"Linen Cloth"}`)
		case "/wow/item/2592":
			_, _ = io.WriteString(w, `{"id":2592,"name":"Wool Cloth"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status":"nok","reason":"item not found"}`)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	client := feed.NewClient("wildhammer", "secret", feed.WithBaseURL(srv.URL), feed.WithMaxRetries(0))
	items := memory.NewItemStore()
	logger := testLogger()

	runner := NewRunner(RunnerOptions{
		Locator:         NewLocator(LocatorOptions{Source: client, Logger: logger}),
		Snapshots:       client,
		Backfiller:      NewItemBackfiller(BackfillOptions{Source: client, Store: items, Logger: logger}),
		AuctionStore:    memory.NewAuctionStore(),
		SnapshotStore:   memory.NewSnapshotStore(),
		StatisticsStore: memory.NewStatisticsStore(),
		Realm:           client.Realm(),
		Logger:          logger,
	})

	result, err := runner.Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, 2, result.Backfill.Fetched)
	assert.Equal(t, 1, result.Backfill.NotFound)

	got, err := items.GetByID(ctx, 2592)
	require.NoError(t, err)
	assert.Equal(t, "Wool Cloth", got.Name)

	again, err := runner.Pull(ctx, domain.PullModeNew)
	require.NoError(t, err)
	assert.True(t, again.NoUpdate())
}
