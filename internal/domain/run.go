package domain

import "github.com/google/uuid"

// RunStatus represents the outcome of an ingestion run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusNoUpdate  RunStatus = "NO_UPDATE"
	RunStatusFailed    RunStatus = "FAILED"
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the run has finished.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusNoUpdate || s == RunStatusFailed
}

// PullMode selects how a run treats already resolved snapshots.
type PullMode string

const (
	// PullModeAlways processes the current snapshot regardless of markers.
	PullModeAlways PullMode = "pull"
	// PullModeNew stops early when the current snapshot is already resolved.
	PullModeNew PullMode = "pull_new"
)

// IsValid checks if the mode is a valid value.
func (m PullMode) IsValid() bool {
	return m == PullModeAlways || m == PullModeNew
}

// IngestRun is one entry of the run ledger.
// Corresponds to ingest_runs table in SQLite.
type IngestRun struct {
	ID                uuid.UUID
	Mode              PullMode
	Realm             string
	StartedAt         int64 // ms
	FinishedAt        int64 // ms, 0 while running
	Status            RunStatus
	SnapshotTimestamp int64 // 0 if the locator failed
	AuctionsStored    int
	ItemsFetched      int
	StatisticsStored  int
	Error             string
}
