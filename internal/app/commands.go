package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"crowdmeter/internal/domain"
)

type CommandService struct {
	repo domain.VenueRepository
	subs domain.SubscriptionRepository
	disp *Dispatcher
}

func NewCommandService(repo domain.VenueRepository, subs domain.SubscriptionRepository, disp *Dispatcher) *CommandService {
	return &CommandService{repo: repo, subs: subs, disp: disp}
}

// ReportStatus persists a venue's reported status and schedules the
// broadcast without waiting on it. The upsert is atomic on venue id, so
// concurrent reports for the same venue converge on the latest writer with
// no read-modify-write.
func (s *CommandService) ReportStatus(ctx context.Context, id domain.Identity, venueID int64, rawStatus string) (domain.AvailabilityRecord, error) {
	status, err := domain.ParseStatus(rawStatus)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	v, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}
	if !id.CanManage(venueID) {
		return domain.AvailabilityRecord{}, fmt.Errorf("%w: venue %d is not managed by user %d", domain.ErrForbidden, venueID, id.UserID)
	}

	rec, err := s.repo.UpsertAvailability(ctx, venueID, status)
	if err != nil {
		return domain.AvailabilityRecord{}, err
	}

	s.disp.BroadcastStatusChanged(v.ID, v.Name, status)
	return rec, nil
}

// Subscribe upserts a push subscription keyed on its endpoint. A manager's
// subscription is scoped to their account so reservation notifications can
// target it; re-subscribing overwrites the stored keys and owner.
func (s *CommandService) Subscribe(ctx context.Context, id domain.Identity, endpoint, p256dh, auth string) error {
	if endpoint == "" || p256dh == "" || auth == "" {
		return fmt.Errorf("%w: endpoint and encryption keys are required", domain.ErrValidation)
	}
	sub := domain.PushSubscription{Endpoint: endpoint, P256dh: p256dh, Auth: auth}
	if id.Role == domain.RoleManager {
		owner := id.UserID
		sub.OwnerID = &owner
	}
	return s.subs.UpsertSubscription(ctx, sub)
}

// Unsubscribe deletes by endpoint; a manager calling without an endpoint
// drops every subscription scoped to their account.
func (s *CommandService) Unsubscribe(ctx context.Context, id domain.Identity, endpoint string) error {
	if endpoint == "" {
		if id.Role == domain.RoleManager {
			return s.subs.DeleteSubscriptionsByOwner(ctx, id.UserID)
		}
		return fmt.Errorf("%w: endpoint is required", domain.ErrValidation)
	}
	return s.subs.DeleteSubscriptionByEndpoint(ctx, endpoint)
}

// CreateReservation persists the reservation, then notifies the venue
// manager. The notification is awaited but its failure never aborts the
// already-committed reservation.
func (s *CommandService) CreateReservation(ctx context.Context, venueID int64, partySize int, arrivalAt time.Time, contact *string) (domain.Reservation, error) {
	if partySize < 1 {
		return domain.Reservation{}, fmt.Errorf("%w: party size must be at least 1", domain.ErrValidation)
	}
	v, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return domain.Reservation{}, err
	}

	r := domain.Reservation{
		ID:        uuid.NewString(),
		VenueID:   venueID,
		PartySize: partySize,
		ArrivalAt: arrivalAt,
		Contact:   contact,
	}
	if err := s.repo.CreateReservation(ctx, r); err != nil {
		return domain.Reservation{}, err
	}

	if err := s.disp.NotifyReservationRequested(ctx, v, partySize, arrivalAt); err != nil {
		log.Warn().Int64("venue_id", venueID).Err(err).Msg("reservation notification failed")
	}
	return r, nil
}
