package audit

import (
	"errors"
	"time"
)

// ErrNotFound indicates a missing audit entry.
var ErrNotFound = errors.New("audit: not found")

// Entry is a persisted audit trail row joined with the actor's profile.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	ActorEmail *string        `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ListFilter narrows the timeline query.
type ListFilter struct {
	ActorID *int64
	Entity  string
	Action  string
	Page    int
	PerPage int
}
