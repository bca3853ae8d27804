package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"crowdmeter/internal/adapters/observability"
	"crowdmeter/internal/background"
	"crowdmeter/internal/domain"
)

const FeatureReservation = "reservation"

// Dispatcher fans congestion notifications out to registered push endpoints.
// Nothing here may fail the operation that triggered it: broadcast errors are
// logged inside the background runner, reservation-notify errors are returned
// for the caller to log and drop.
//
// Broadcasts are unscoped: every stored subscription hears about every
// venue's status change. Only the reservation path targets a specific
// manager.
type Dispatcher struct {
	repo        domain.VenueRepository
	subs        domain.SubscriptionRepository
	push        domain.PushTransport
	runner      *background.Runner
	baseURL     string
	fanout      int64
	sendTimeout time.Duration
}

func NewDispatcher(repo domain.VenueRepository, subs domain.SubscriptionRepository, push domain.PushTransport, runner *background.Runner, baseURL string, fanout int, sendTimeout time.Duration) *Dispatcher {
	if fanout <= 0 {
		fanout = 16
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		repo:        repo,
		subs:        subs,
		push:        push,
		runner:      runner,
		baseURL:     baseURL,
		fanout:      int64(fanout),
		sendTimeout: sendTimeout,
	}
}

var statusLabels = map[domain.Status]string{
	domain.StatusAvailable: "空きあり",
	domain.StatusBusy:      "やや混雑",
	domain.StatusFull:      "満席",
	domain.StatusClosed:    "閉店",
}

// BroadcastStatusChanged schedules the fan-out on the background runner and
// returns immediately; the triggering status update never waits on it.
func (d *Dispatcher) BroadcastStatusChanged(venueID int64, venueName string, status domain.Status) {
	d.runner.Spawn("broadcast_status", func(ctx context.Context) error {
		return d.broadcast(ctx, venueID, venueName, status)
	})
}

func (d *Dispatcher) broadcast(ctx context.Context, venueID int64, venueName string, status domain.Status) error {
	subs, err := d.subs.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	body, err := json.Marshal(domain.NotificationPayload{
		Title:   venueName,
		Body:    fmt.Sprintf("混雑状況が「%s」に更新されました", statusLabels[status]),
		Icon:    d.baseURL + "/icons/icon-192.png",
		URL:     fmt.Sprintf("%s/venues/%d", d.baseURL, venueID),
		VenueID: venueID,
	})
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(d.fanout)
	var wg sync.WaitGroup
	for _, sub := range subs {
		sub := sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			d.send(ctx, sub, body)
		}()
	}
	wg.Wait()
	return nil
}

// send delivers to one endpoint. A permanent transport failure prunes the
// subscription; anything else is logged and the siblings carry on.
func (d *Dispatcher) send(ctx context.Context, sub domain.PushSubscription, body []byte) {
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	err := d.push.Send(sctx, sub, body)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSubscriptionGone):
		if derr := d.subs.DeleteSubscriptionByEndpoint(ctx, sub.Endpoint); derr != nil {
			log.Warn().Str("endpoint", sub.Endpoint).Err(derr).Msg("prune stale subscription failed")
			return
		}
		observability.ObservePrune()
		log.Info().Str("endpoint", sub.Endpoint).Msg("pruned stale subscription")
	default:
		log.Warn().Str("endpoint", sub.Endpoint).Err(err).Msg("push send failed")
	}
}

// NotifyReservationRequested sends one targeted payload to the venue
// manager's subscription. No-op unless the reservation feature flag is
// enabled for the venue; a manager without a subscription completes
// silently. The caller awaits this but logs-and-drops any error.
func (d *Dispatcher) NotifyReservationRequested(ctx context.Context, v domain.Venue, partySize int, arrivalAt time.Time) error {
	enabled, err := d.repo.IsFeatureEnabled(ctx, v.ID, FeatureReservation)
	if err != nil {
		return fmt.Errorf("feature flag lookup: %w", err)
	}
	if !enabled {
		return nil
	}

	sub, err := d.subs.GetSubscriptionByOwner(ctx, v.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	body, err := json.Marshal(domain.NotificationPayload{
		Title:   "予約リクエスト",
		Body:    fmt.Sprintf("%s: %d名様、%s頃来店予定", v.Name, partySize, arrivalAt.Format("15:04")),
		Icon:    d.baseURL + "/icons/icon-192.png",
		URL:     fmt.Sprintf("%s/manage/venues/%d", d.baseURL, v.ID),
		VenueID: v.ID,
	})
	if err != nil {
		return err
	}

	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.push.Send(sctx, sub, body)
}
