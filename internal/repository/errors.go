// Package repository implements the reservation engine's store contracts
// on top of memory, MySQL and Postgres.  Every store reports missing rows
// by wrapping reservation.ErrNotFound so that handlers can translate them
// into an HTTP 404 without knowing which backend is configured, and
// reports a moved seat counter as reservation.ErrLedgerConflict.
package repository

import (
	"fmt"

	"github.com/iliyamo/resort-reservation/internal/reservation"
)

func serviceNotFound(id uint64) error {
	return fmt.Errorf("service %d: %w", id, reservation.ErrNotFound)
}

func detailNotFound(id string) error {
	return fmt.Errorf("booking detail %s: %w", id, reservation.ErrNotFound)
}

func eventNotFound(id uint64) error {
	return fmt.Errorf("event %d: %w", id, reservation.ErrNotFound)
}

func counterMoved(eventID uint64, expected int) error {
	return fmt.Errorf("%w: seats_remaining of event %d is no longer %d", reservation.ErrLedgerConflict, eventID, expected)
}
