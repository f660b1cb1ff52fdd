package domain

// SnapshotDescriptor identifies one published auction snapshot.
// Built by the locator from the feed index; Timestamp is the feed's
// lastModified value (unix ms).
type SnapshotDescriptor struct {
	URL       string // download location of the snapshot body
	Timestamp int64  // snapshot timestamp (ms)
}

// SnapshotMarker records that a snapshot has been fully resolved.
// Corresponds to snapshots table in PostgreSQL. At most one per Timestamp.
type SnapshotMarker struct {
	Timestamp       int64  // PRIMARY KEY, snapshot timestamp (ms)
	URL             string // snapshot url the auctions were read from
	AuctionCount    int    // auctions stored for the snapshot
	ItemCount       int    // distinct item ids seen in the snapshot
	StatisticsCount int    // statistics rows stored for the snapshot
	BodyDigest      string // SHA-256 of the downloaded body, hex
	CreatedAt       int64  // record creation timestamp (ms)
}
