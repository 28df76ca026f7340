package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRecordID computes a deterministic prediction record ID using SHA256.
// Formula: SHA256(asset_id|timestamp_ms|lookback|predict_steps|trials)
// Returns hex-encoded hash (64 characters).
func ComputeRecordID(assetID string, timestampMs int64, lookback, predictSteps, trials int) string {
	data := fmt.Sprintf("%s|%d|%d|%d|%d",
		assetID,
		timestampMs,
		lookback,
		predictSteps,
		trials,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeEventID computes a deterministic slot event ID.
// Formula: SHA256(record_id|event_type|slot|timestamp_ms)
func ComputeEventID(recordID, eventType string, slot int, timestampMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d",
		recordID,
		eventType,
		slot,
		timestampMs,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
