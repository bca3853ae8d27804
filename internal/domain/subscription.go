package domain

import "time"

// PushSubscription is a registered web-push endpoint. Endpoint is unique;
// OwnerID scopes the subscription to a manager account when set.
type PushSubscription struct {
	ID       int64
	Endpoint string
	P256dh   string
	Auth     string
	OwnerID  *int64
}

// NotificationPayload is built per dispatch and never persisted.
type NotificationPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Icon    string `json:"icon,omitempty"`
	URL     string `json:"url"`
	VenueID int64  `json:"venue_id"`
}

type Reservation struct {
	ID        string
	VenueID   int64
	PartySize int
	ArrivalAt time.Time
	Contact   *string
}
