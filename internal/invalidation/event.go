// Package invalidation defines the feature-update event published by the
// data import pipeline. Consumers evict the cache entries a changed feature
// could be serving through.
package invalidation

import (
	"fmt"
	"strings"
	"time"
)

type Event struct {
	Version     int       `json:"version"`
	Op          string    `json:"op"`
	FeatureID   string    `json:"feature_id"`
	Island      string    `json:"island,omitempty"`
	District    string    `json:"district,omitempty"`
	DataVersion uint64    `json:"data_version"`
	TS          time.Time `json:"ts"`
	Source      string    `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.FeatureID) == "" {
		return fmt.Errorf("feature_id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}
