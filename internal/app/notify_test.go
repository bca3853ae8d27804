package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crowdmeter/internal/app"
	"crowdmeter/internal/background"
	"crowdmeter/internal/domain"
)

func newDispatcher(repo *fakeRepo, subs *fakeSubs, tr *fakeTransport) *app.Dispatcher {
	runner := background.NewRunner(4, zerolog.Nop())
	return app.NewDispatcher(repo, subs, tr, runner, "https://crowd.example", 4, time.Second)
}

func addSub(t *testing.T, subs *fakeSubs, endpoint string, owner *int64) {
	t.Helper()
	sub := domain.PushSubscription{Endpoint: endpoint, P256dh: "p", Auth: "a", OwnerID: owner}
	if err := subs.UpsertSubscription(context.Background(), sub); err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestBroadcast_FansOutToEverySubscription(t *testing.T) {
	repo := newFakeRepo()
	subs := &fakeSubs{}
	tr := newFakeTransport()
	addSub(t, subs, "https://push/a", nil)
	addSub(t, subs, "https://push/b", nil)
	addSub(t, subs, "https://push/c", nil)

	runner := background.NewRunner(4, zerolog.Nop())
	d := app.NewDispatcher(repo, subs, tr, runner, "https://crowd.example", 4, time.Second)
	d.BroadcastStatusChanged(7, "喫茶ルポ", domain.StatusFull)
	runner.Wait()

	for _, ep := range []string{"https://push/a", "https://push/b", "https://push/c"} {
		if tr.sentTo(ep) != 1 {
			t.Fatalf("endpoint %s got %d sends, want 1", ep, tr.sentTo(ep))
		}
	}

	var p domain.NotificationPayload
	if err := json.Unmarshal(tr.sent["https://push/a"][0], &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Title != "喫茶ルポ" || p.VenueID != 7 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	if p.URL != "https://crowd.example/venues/7" {
		t.Fatalf("unexpected url: %s", p.URL)
	}
}

func TestBroadcast_PrunesGoneEndpoints(t *testing.T) {
	repo := newFakeRepo()
	subs := &fakeSubs{}
	tr := newFakeTransport()
	addSub(t, subs, "https://push/a", nil)
	addSub(t, subs, "https://push/gone", nil)
	addSub(t, subs, "https://push/c", nil)
	tr.errs["https://push/gone"] = domain.ErrSubscriptionGone

	runner := background.NewRunner(4, zerolog.Nop())
	d := app.NewDispatcher(repo, subs, tr, runner, "https://crowd.example", 4, time.Second)
	d.BroadcastStatusChanged(7, "venue", domain.StatusBusy)
	runner.Wait()

	if len(subs.deleted) != 1 || subs.deleted[0] != "https://push/gone" {
		t.Fatalf("expected exactly the gone endpoint pruned, got %v", subs.deleted)
	}
	if tr.sentTo("https://push/a") != 1 || tr.sentTo("https://push/c") != 1 {
		t.Fatalf("siblings must still be delivered")
	}
}

func TestBroadcast_TransientErrorDoesNotPrune(t *testing.T) {
	repo := newFakeRepo()
	subs := &fakeSubs{}
	tr := newFakeTransport()
	addSub(t, subs, "https://push/flaky", nil)
	addSub(t, subs, "https://push/ok", nil)
	tr.errs["https://push/flaky"] = errors.New("503 from push service")

	runner := background.NewRunner(4, zerolog.Nop())
	d := app.NewDispatcher(repo, subs, tr, runner, "https://crowd.example", 4, time.Second)
	d.BroadcastStatusChanged(7, "venue", domain.StatusAvailable)
	runner.Wait()

	if len(subs.deleted) != 0 {
		t.Fatalf("transient failures must not prune, got %v", subs.deleted)
	}
	if tr.sentTo("https://push/ok") != 1 {
		t.Fatalf("sibling delivery missing")
	}
}

func TestBroadcast_NoSubscriptionsIsQuiet(t *testing.T) {
	runner := background.NewRunner(4, zerolog.Nop())
	tr := newFakeTransport()
	d := app.NewDispatcher(newFakeRepo(), &fakeSubs{}, tr, runner, "https://crowd.example", 4, time.Second)
	d.BroadcastStatusChanged(1, "venue", domain.StatusClosed)
	runner.Wait()

	if len(tr.sent) != 0 {
		t.Fatalf("no subscriptions means no sends, got %v", tr.sent)
	}
}

func TestNotifyReservation_FlagDisabled(t *testing.T) {
	repo := newFakeRepo()
	subs := &fakeSubs{}
	tr := newFakeTransport()
	owner := int64(101)
	addSub(t, subs, "https://push/manager", &owner)

	d := newDispatcher(repo, subs, tr)
	v := domain.Venue{ID: 1, OwnerID: 101, Name: "venue"}
	if err := d.NotifyReservationRequested(context.Background(), v, 2, time.Now()); err != nil {
		t.Fatalf("err: %v", err)
	}
	if tr.sentTo("https://push/manager") != 0 {
		t.Fatalf("disabled flag must suppress the notification")
	}
}

func TestNotifyReservation_TargetsManagerSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.flags[flagKey(1, app.FeatureReservation)] = true
	subs := &fakeSubs{}
	tr := newFakeTransport()
	owner := int64(101)
	other := int64(999)
	addSub(t, subs, "https://push/manager", &owner)
	addSub(t, subs, "https://push/visitor", nil)
	addSub(t, subs, "https://push/other-manager", &other)

	d := newDispatcher(repo, subs, tr)
	v := domain.Venue{ID: 1, OwnerID: 101, Name: "居酒屋ふくろう"}
	arrival := time.Date(2026, 9, 1, 19, 30, 0, 0, time.UTC)
	if err := d.NotifyReservationRequested(context.Background(), v, 4, arrival); err != nil {
		t.Fatalf("err: %v", err)
	}

	if tr.sentTo("https://push/manager") != 1 {
		t.Fatalf("manager should receive exactly one notification")
	}
	if tr.sentTo("https://push/visitor") != 0 || tr.sentTo("https://push/other-manager") != 0 {
		t.Fatalf("reservation notifications must not fan out")
	}

	var p domain.NotificationPayload
	if err := json.Unmarshal(tr.sent["https://push/manager"][0], &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Title != "予約リクエスト" || p.VenueID != 1 {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestNotifyReservation_NoManagerSubscription(t *testing.T) {
	repo := newFakeRepo()
	repo.flags[flagKey(1, app.FeatureReservation)] = true

	d := newDispatcher(repo, &fakeSubs{}, newFakeTransport())
	v := domain.Venue{ID: 1, OwnerID: 101, Name: "venue"}
	if err := d.NotifyReservationRequested(context.Background(), v, 2, time.Now()); err != nil {
		t.Fatalf("missing subscription should complete silently, got %v", err)
	}
}
