package models

import (
	"time"
)

// Conference is the content document stored as one JSON file per slug.
type Conference struct {
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Active    bool      `json:"active"`
	Whitelist []string  `json:"whitelist,omitempty"` // allowed registrant emails; empty = open registration
	Sessions  []Session `json:"sessions"`
}

// Session is a scheduled conference session. Identity is immutable once created.
type Session struct {
	ID             string    `json:"id"`
	ConferenceSlug string    `json:"conference_slug"`
	Title          string    `json:"title"`
	Track          string    `json:"track,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Room           string    `json:"room"`
	Capacity       *int      `json:"capacity,omitempty"` // nil = unlimited
}

// CapacityStatus is the computed occupancy view of a session, derived on read.
type CapacityStatus struct {
	Capacity   *int `json:"capacity"`
	Registered int  `json:"registered"`
	Available  *int `json:"available"` // nil when capacity is unlimited
	IsFull     bool `json:"is_full"`
}

// SessionWithCapacity pairs a session with its occupancy for listing endpoints.
type SessionWithCapacity struct {
	Session
	CapacityStatus CapacityStatus `json:"capacity_status"`
}
