package app_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crowdmeter/internal/domain"
)

// ---- fakes shared by the app tests ----

type fakeRepo struct {
	mu       sync.Mutex
	venues   map[int64]domain.Venue
	rows     []domain.VenueStatus
	records  map[int64]domain.AvailabilityRecord
	settings map[string]string
	flags    map[string]bool

	settingErr    error
	settingCalled bool
	reservations  []domain.Reservation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		venues:   map[int64]domain.Venue{},
		records:  map[int64]domain.AvailabilityRecord{},
		settings: map[string]string{},
		flags:    map[string]bool{},
	}
}

func (f *fakeRepo) addVenue(v domain.Venue, reported *domain.Status) {
	f.venues[v.ID] = v
	row := domain.VenueStatus{Venue: v, Reported: reported}
	if reported != nil {
		now := time.Now()
		row.UpdatedAt = &now
	}
	f.rows = append(f.rows, row)
}

func (f *fakeRepo) UpsertVenue(ctx context.Context, v domain.Venue) error { return nil }

func (f *fakeRepo) UpsertAvailability(ctx context.Context, venueID int64, s domain.Status) (domain.AvailabilityRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := domain.AvailabilityRecord{VenueID: venueID, Status: s, UpdatedAt: time.Now()}
	f.records[venueID] = rec
	return rec, nil
}

func (f *fakeRepo) CreateReservation(ctx context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, r)
	return nil
}

func (f *fakeRepo) SetSetting(ctx context.Context, name, value string) error {
	f.settings[name] = value
	return nil
}

func (f *fakeRepo) SetFeatureFlag(ctx context.Context, venueID int64, feature string, enabled bool) error {
	f.flags[flagKey(venueID, feature)] = enabled
	return nil
}

func (f *fakeRepo) GetVenue(ctx context.Context, id int64) (domain.Venue, error) {
	v, ok := f.venues[id]
	if !ok {
		return domain.Venue{}, domain.ErrNotFound
	}
	return v, nil
}

// ListVenues applies the equality filters the real repo pushes into SQL.
func (f *fakeRepo) ListVenues(ctx context.Context, q domain.VenueFilter) ([]domain.VenueStatus, error) {
	var out []domain.VenueStatus
	for _, row := range f.rows {
		if !row.Venue.Active {
			continue
		}
		if q.Category != nil && row.Venue.Category != *q.Category {
			continue
		}
		if q.Status != nil && (row.Reported == nil || *row.Reported != *q.Status) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeRepo) GetSetting(ctx context.Context, name string) (string, error) {
	f.settingCalled = true
	if f.settingErr != nil {
		return "", f.settingErr
	}
	v, ok := f.settings[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) IsFeatureEnabled(ctx context.Context, venueID int64, feature string) (bool, error) {
	return f.flags[flagKey(venueID, feature)], nil
}

func flagKey(venueID int64, feature string) string { return fmt.Sprintf("%d:%s", venueID, feature) }

type fakeSubs struct {
	mu      sync.Mutex
	subs    []domain.PushSubscription
	deleted []string
}

func (f *fakeSubs) UpsertSubscription(ctx context.Context, s domain.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, old := range f.subs {
		if old.Endpoint == s.Endpoint {
			s.ID = old.ID
			f.subs[i] = s
			return nil
		}
	}
	s.ID = int64(len(f.subs) + 1)
	f.subs = append(f.subs, s)
	return nil
}

func (f *fakeSubs) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	for i, s := range f.subs {
		if s.Endpoint == endpoint {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeSubs) DeleteSubscriptionsByOwner(ctx context.Context, ownerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.subs[:0]
	for _, s := range f.subs {
		if s.OwnerID != nil && *s.OwnerID == ownerID {
			f.deleted = append(f.deleted, s.Endpoint)
			continue
		}
		kept = append(kept, s)
	}
	f.subs = kept
	return nil
}

func (f *fakeSubs) ListSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PushSubscription, len(f.subs))
	copy(out, f.subs)
	return out, nil
}

func (f *fakeSubs) GetSubscriptionByOwner(ctx context.Context, ownerID int64) (domain.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].OwnerID != nil && *f.subs[i].OwnerID == ownerID {
			return f.subs[i], nil
		}
	}
	return domain.PushSubscription{}, domain.ErrNotFound
}

type fakeTransport struct {
	mu   sync.Mutex
	sent map[string][][]byte // endpoint -> payloads
	errs map[string]error    // endpoint -> forced error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: map[string][][]byte{}, errs: map[string]error{}}
}

func (f *fakeTransport) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[sub.Endpoint]; err != nil {
		return err
	}
	f.sent[sub.Endpoint] = append(f.sent[sub.Endpoint], payload)
	return nil
}

func (f *fakeTransport) sentTo(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[endpoint])
}

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if d, ok2 := dst.(*int); ok2 {
		*d = v.(int)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}
