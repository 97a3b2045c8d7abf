package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"trendradar/internal/domain"
)

// rollupMarker stands in for a nil sub-category so "Animals/*" never collides with a sub named "".
const rollupMarker = "\x00*"

// ComputeAggregateID computes a deterministic aggregate_id using SHA256.
// Formula: SHA256(snapshot_time|category|sub_category|time_window)
// Returns hex-encoded hash (64 characters).
func ComputeAggregateID(snapshotTime int64, key domain.CategoryKey, window string) string {
	data := fmt.Sprintf("%d|%s|%s|%s",
		snapshotTime,
		key.Category,
		subOrMarker(key),
		window,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeSeriesKey identifies one (category, sub_category, time_window) series across snapshots.
// Used to serialize work on the same series.
func ComputeSeriesKey(key domain.CategoryKey, window string) string {
	return key.Category + "|" + subOrMarker(key) + "|" + window
}

func subOrMarker(key domain.CategoryKey) string {
	if key.SubCategory == nil {
		return rollupMarker
	}
	return *key.SubCategory
}
