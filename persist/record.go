// Package persist keeps tour progress in durable storage so that it
// survives a full page reload.
//
// The record is written as JSON under a single fixed key. Reads never fail:
// a missing record reports ok=false and an unreadable one decodes to the
// zero record. Writes that fail are logged and the session keeps going
// in memory.
package persist

import (
	"encoding/json"
	"fmt"
)

// DefaultKey is the storage key used when none is configured.
const DefaultKey = "waypoint.tour"

// Record is the persisted tour progress.
type Record struct {
	CurrentStepIndex int   `json:"currentStepIndex"`
	IsActive         bool  `json:"isActive"`
	Timestamp        int64 `json:"timestamp"`
}

// Encode serialises r.
func Encode(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a stored payload. Negative indices are rejected.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("persist: decode: %w", err)
	}
	if r.CurrentStepIndex < 0 {
		return Record{}, fmt.Errorf("persist: decode: negative step index %d", r.CurrentStepIndex)
	}
	return r, nil
}
