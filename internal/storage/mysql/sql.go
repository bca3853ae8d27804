package mysql

const upsertVenueSQL = `
INSERT INTO venues
  (id, owner_id, name, category, lat, lng, hours, icon_url, active)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  owner_id   = VALUES(owner_id),
  name       = VALUES(name),
  category   = VALUES(category),
  lat        = VALUES(lat),
  lng        = VALUES(lng),
  hours      = VALUES(hours),
  icon_url   = VALUES(icon_url),
  active     = VALUES(active),
  updated_at = CURRENT_TIMESTAMP
`

// The unique key on venue_id makes concurrent reports for the same venue
// converge on the latest writer without a read-modify-write.
const upsertAvailabilitySQL = `
INSERT INTO venue_availability (venue_id, status)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE
  status     = VALUES(status),
  updated_at = CURRENT_TIMESTAMP
`

const getAvailabilitySQL = `
SELECT venue_id, status, updated_at
FROM venue_availability
WHERE venue_id = ?
`

const getVenueSQL = `
SELECT id, owner_id, name, category, lat, lng, hours, icon_url, active
FROM venues
WHERE id = ?
`

// Base SELECT for search; the repo appends the optional equality filters.
// Left join: a venue with no availability row simply has no reported status.
const listVenuesSQL = `
SELECT
  v.id, v.owner_id, v.name, v.category, v.lat, v.lng, v.hours, v.icon_url, v.active,
  a.status, a.updated_at
FROM venues v
LEFT JOIN venue_availability a ON a.venue_id = v.id
WHERE v.active = 1
`

const getSettingSQL = `SELECT value FROM settings WHERE name = ?`

const upsertSettingSQL = `
INSERT INTO settings (name, value)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value)
`

const getFeatureFlagSQL = `
SELECT enabled FROM feature_flags WHERE venue_id = ? AND feature = ?
`

const upsertFeatureFlagSQL = `
INSERT INTO feature_flags (venue_id, feature, enabled)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE enabled = VALUES(enabled)
`

const upsertSubscriptionSQL = `
INSERT INTO push_subscriptions (endpoint, p256dh, auth, owner_id)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  p256dh   = VALUES(p256dh),
  auth     = VALUES(auth),
  owner_id = VALUES(owner_id)
`

const deleteSubscriptionByEndpointSQL = `DELETE FROM push_subscriptions WHERE endpoint = ?`

const deleteSubscriptionsByOwnerSQL = `DELETE FROM push_subscriptions WHERE owner_id = ?`

const listSubscriptionsSQL = `
SELECT id, endpoint, p256dh, auth, owner_id
FROM push_subscriptions
ORDER BY id
`

const getSubscriptionByOwnerSQL = `
SELECT id, endpoint, p256dh, auth, owner_id
FROM push_subscriptions
WHERE owner_id = ?
ORDER BY id DESC
LIMIT 1
`

const insertReservationSQL = `
INSERT INTO reservations (id, venue_id, party_size, arrival_at, contact)
VALUES (?, ?, ?, ?, ?)
`
