package domain

import (
	"fmt"
	"time"
)

// Status is a venue's reported congestion level.
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusFull      Status = "full"
	StatusClosed    Status = "closed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusAvailable, StatusBusy, StatusFull, StatusClosed:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// AvailabilityRecord is the last manually reported status for a venue.
// Exactly one row exists per venue; reports upsert in place.
type AvailabilityRecord struct {
	VenueID   int64
	Status    Status
	UpdatedAt time.Time
}

// ResolveDisplayStatus derives the status shown to visitors. Outside the
// venue's business hours the reported status is overridden to closed; the
// stored record is never mutated. now must be venue-local time.
//
// A window with ClosesNextDay straddles midnight, so its tail on the next
// calendar day counts as open even when that day has no schedule of its own.
// Venues with no schedule configured at all are never overridden.
func ResolveDisplayStatus(v Venue, reported Status, now time.Time) Status {
	if len(v.Hours) == 0 {
		return reported
	}
	clock := now.Hour()*100 + now.Minute()

	if d, ok := v.Hours[now.Weekday()]; ok && d.Open != nil && d.Close != nil {
		if openAt(d, clock) {
			return reported
		}
	}

	yesterday := (now.Weekday() + 6) % 7
	if d, ok := v.Hours[yesterday]; ok && d.ClosesNextDay && d.Open != nil && d.Close != nil {
		if clock >= *d.Open || clock < *d.Close {
			return reported
		}
	}

	return StatusClosed
}

func openAt(d DaySchedule, clock int) bool {
	if d.ClosesNextDay {
		return clock >= *d.Open || clock < *d.Close
	}
	return clock >= *d.Open && clock < *d.Close
}
