// Package audit exposes the read side of the audit trail: a filterable
// timeline over audit_logs plus CSV export. Writes go through
// shared.AuditLogger.
package audit

import "time"

// Entry is one row of the audit timeline.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	ActorEmail string         `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	At         time.Time      `json:"at"`
}

// TimelineFilters narrows the timeline query. Zero values mean no filter.
type TimelineFilters struct {
	From    time.Time
	To      time.Time
	ActorID int64
	Entity  string
	Action  string
	Page    int
	PerPage int
}
