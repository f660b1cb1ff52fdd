package idhash

import (
	"crypto/sha256"
	"encoding/hex"
)

// ComputeSnapshotDigest computes the content digest of a snapshot body.
// Formula: SHA256(body)
// Returns hex-encoded hash (64 characters).
func ComputeSnapshotDigest(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}
