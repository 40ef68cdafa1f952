package model

import "time"

// Event is a fixed-capacity happening that users enroll in with a number
// of participants.  SeatsRemaining moves in lockstep with the sum of active
// enrollment participants so that
//
//	SeatsRemaining + Σ participants == SeatsTotal
//
// holds at every observable instant.
type Event struct {
	ID             uint64    `json:"id"`              // events.id
	Name           string    `json:"name"`            // events.name
	StartsAt       time.Time `json:"starts_at"`       // events.starts_at
	SeatsTotal     int       `json:"seats_total"`     // events.seats_total
	SeatsRemaining int       `json:"seats_remaining"` // events.seats_remaining
}

// Enrollment is the (event, user) relationship.  It is unique per pair and
// always holds at least one participant.
type Enrollment struct {
	ID           string    `json:"id"`           // enrollments.id
	EventID      uint64    `json:"event_id"`     // enrollments.event_id
	UserID       uint64    `json:"user_id"`      // enrollments.user_id
	Participants int       `json:"participants"` // enrollments.participants
	CreatedAt    time.Time `json:"created_at"`   // enrollments.created_at
	UpdatedAt    time.Time `json:"updated_at"`   // enrollments.updated_at
}
