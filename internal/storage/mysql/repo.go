package mysql

import (
	"context"
	"database/sql"
	"encoding/json"

	"crowdmeter/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertVenue(ctx context.Context, v domain.Venue) error {
	hours, err := json.Marshal(v.Hours)
	if err != nil {
		return err
	}
	var lat, lng any
	if v.Coords != nil {
		lat, lng = v.Coords.Lat, v.Coords.Lng
	}
	_, err = r.db.ExecContext(ctx, upsertVenueSQL,
		v.ID,
		v.OwnerID,
		v.Name,
		v.Category,
		lat,
		lng,
		string(hours),
		valStr(v.IconURL),
		v.Active,
	)
	return err
}

func (r *Repo) UpsertAvailability(ctx context.Context, venueID int64, s domain.Status) (domain.AvailabilityRecord, error) {
	if _, err := r.db.ExecContext(ctx, upsertAvailabilitySQL, venueID, string(s)); err != nil {
		return domain.AvailabilityRecord{}, err
	}
	var rec domain.AvailabilityRecord
	var status string
	row := r.db.QueryRowContext(ctx, getAvailabilitySQL, venueID)
	if err := row.Scan(&rec.VenueID, &status, &rec.UpdatedAt); err != nil {
		return domain.AvailabilityRecord{}, err
	}
	rec.Status = domain.Status(status)
	return rec, nil
}

func (r *Repo) GetVenue(ctx context.Context, id int64) (domain.Venue, error) {
	row := r.db.QueryRowContext(ctx, getVenueSQL, id)
	v, err := scanVenue(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Venue{}, domain.ErrNotFound
	}
	return v, err
}

func (r *Repo) ListVenues(ctx context.Context, f domain.VenueFilter) ([]domain.VenueStatus, error) {
	q := listVenuesSQL
	var args []any
	if f.Category != nil {
		q += " AND v.category = ?"
		args = append(args, *f.Category)
	}
	if f.Status != nil {
		q += " AND a.status = ?"
		args = append(args, string(*f.Status))
	}
	q += " ORDER BY v.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.VenueStatus
	for rows.Next() {
		var (
			vs       domain.VenueStatus
			lat, lng sql.NullFloat64
			hoursRaw []byte
			iconURL  sql.NullString
			status   sql.NullString
			updated  sql.NullTime
		)
		if err := rows.Scan(
			&vs.Venue.ID, &vs.Venue.OwnerID, &vs.Venue.Name, &vs.Venue.Category,
			&lat, &lng, &hoursRaw, &iconURL, &vs.Venue.Active,
			&status, &updated,
		); err != nil {
			return nil, err
		}
		fillVenue(&vs.Venue, lat, lng, hoursRaw, iconURL)
		if status.Valid {
			st := domain.Status(status.String)
			vs.Reported = &st
		}
		if updated.Valid {
			t := updated.Time
			vs.UpdatedAt = &t
		}
		out = append(out, vs)
	}
	return out, rows.Err()
}

func (r *Repo) GetSetting(ctx context.Context, name string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, getSettingSQL, name).Scan(&v)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	return v, err
}

func (r *Repo) SetSetting(ctx context.Context, name, value string) error {
	_, err := r.db.ExecContext(ctx, upsertSettingSQL, name, value)
	return err
}

// IsFeatureEnabled fails closed: no stored row means disabled.
func (r *Repo) IsFeatureEnabled(ctx context.Context, venueID int64, feature string) (bool, error) {
	var enabled bool
	err := r.db.QueryRowContext(ctx, getFeatureFlagSQL, venueID, feature).Scan(&enabled)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enabled, nil
}

func (r *Repo) SetFeatureFlag(ctx context.Context, venueID int64, feature string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, upsertFeatureFlagSQL, venueID, feature, enabled)
	return err
}

func (r *Repo) CreateReservation(ctx context.Context, res domain.Reservation) error {
	_, err := r.db.ExecContext(ctx, insertReservationSQL,
		res.ID, res.VenueID, res.PartySize, res.ArrivalAt.UTC(), valStr(res.Contact))
	return err
}

func (r *Repo) UpsertSubscription(ctx context.Context, s domain.PushSubscription) error {
	var owner any
	if s.OwnerID != nil {
		owner = *s.OwnerID
	}
	_, err := r.db.ExecContext(ctx, upsertSubscriptionSQL, s.Endpoint, s.P256dh, s.Auth, owner)
	return err
}

func (r *Repo) DeleteSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.db.ExecContext(ctx, deleteSubscriptionByEndpointSQL, endpoint)
	return err
}

func (r *Repo) DeleteSubscriptionsByOwner(ctx context.Context, ownerID int64) error {
	_, err := r.db.ExecContext(ctx, deleteSubscriptionsByOwnerSQL, ownerID)
	return err
}

func (r *Repo) ListSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	rows, err := r.db.QueryContext(ctx, listSubscriptionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		s, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) GetSubscriptionByOwner(ctx context.Context, ownerID int64) (domain.PushSubscription, error) {
	row := r.db.QueryRowContext(ctx, getSubscriptionByOwnerSQL, ownerID)
	s, err := scanSubscription(row.Scan)
	if err == sql.ErrNoRows {
		return domain.PushSubscription{}, domain.ErrNotFound
	}
	return s, err
}

// ---- row mapping ----

func scanVenue(scan func(...any) error) (domain.Venue, error) {
	var (
		v        domain.Venue
		lat, lng sql.NullFloat64
		hoursRaw []byte
		iconURL  sql.NullString
	)
	if err := scan(&v.ID, &v.OwnerID, &v.Name, &v.Category, &lat, &lng, &hoursRaw, &iconURL, &v.Active); err != nil {
		return domain.Venue{}, err
	}
	fillVenue(&v, lat, lng, hoursRaw, iconURL)
	return v, nil
}

func fillVenue(v *domain.Venue, lat, lng sql.NullFloat64, hoursRaw []byte, iconURL sql.NullString) {
	if lat.Valid && lng.Valid {
		v.Coords = &domain.Coords{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(hoursRaw) > 0 {
		// malformed hours behave as "no schedule configured"
		_ = json.Unmarshal(hoursRaw, &v.Hours)
	}
	if iconURL.Valid {
		s := iconURL.String
		v.IconURL = &s
	}
}

func scanSubscription(scan func(...any) error) (domain.PushSubscription, error) {
	var (
		s     domain.PushSubscription
		owner sql.NullInt64
	)
	if err := scan(&s.ID, &s.Endpoint, &s.P256dh, &s.Auth, &owner); err != nil {
		return domain.PushSubscription{}, err
	}
	if owner.Valid {
		o := owner.Int64
		s.OwnerID = &o
	}
	return s, nil
}
