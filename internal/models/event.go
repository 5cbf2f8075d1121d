// internal/models/event.go
package models

import "time"

// Session event types pushed to subscribers
const (
	EventStateChanged     = "state_changed"
	EventPartGenerated    = "part_generated"
	EventSequenceFinished = "sequence_finished"
	EventActionFailed     = "action_failed"
	EventCacheInvalidated = "cache_invalidated"
)

type SessionEvent struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id"`
	Action    string         `json:"action,omitempty"`
	State     string         `json:"state,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
