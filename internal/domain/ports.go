package domain

import (
	"context"
	"time"
)

type VenueRepository interface {
	// Write paths
	UpsertVenue(ctx context.Context, v Venue) error
	UpsertAvailability(ctx context.Context, venueID int64, s Status) (AvailabilityRecord, error)
	CreateReservation(ctx context.Context, r Reservation) error
	SetSetting(ctx context.Context, name, value string) error
	SetFeatureFlag(ctx context.Context, venueID int64, feature string, enabled bool) error

	// Read paths
	GetVenue(ctx context.Context, id int64) (Venue, error)
	ListVenues(ctx context.Context, f VenueFilter) ([]VenueStatus, error)
	GetSetting(ctx context.Context, name string) (string, error)
	IsFeatureEnabled(ctx context.Context, venueID int64, feature string) (bool, error)
}

type SubscriptionRepository interface {
	UpsertSubscription(ctx context.Context, s PushSubscription) error
	DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error
	DeleteSubscriptionsByOwner(ctx context.Context, ownerID int64) error
	ListSubscriptions(ctx context.Context) ([]PushSubscription, error)
	GetSubscriptionByOwner(ctx context.Context, ownerID int64) (PushSubscription, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// PushTransport delivers one payload to one endpoint. Implementations return
// ErrSubscriptionGone when the push service reports the endpoint permanently
// invalid.
type PushTransport interface {
	Send(ctx context.Context, sub PushSubscription, payload []byte) error
}

// Queries & read models

type VenueFilter struct {
	Category *string
	Status   *Status
}

// VenueStatus is a venue left-joined with its availability record; Reported
// is nil when no status has ever been reported.
type VenueStatus struct {
	Venue     Venue
	Reported  *Status
	UpdatedAt *time.Time
}

type SearchQuery struct {
	Category *string
	Status   *Status
	Origin   *Coords
	RadiusKm *float64
}

// SearchItem carries the effective display status (which may be the closed
// override) alongside the raw reported one. DistanceM is set only when the
// query had an origin and the venue has coordinates.
type SearchItem struct {
	Venue     Venue
	Status    Status
	Reported  *Status
	DistanceM *int
	UpdatedAt *time.Time
}

type SearchPage struct {
	Items []SearchItem
	Total int
}

// Identity is the caller as verified by the upstream auth service. The core
// never issues or checks credentials itself.
type Identity struct {
	UserID int64
	Role   string
	ShopID int64 // 0 when the caller owns no shop
}

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
)

func (i Identity) CanManage(venueID int64) bool {
	return i.Role == RoleAdmin || (i.Role == RoleManager && i.ShopID == venueID)
}
