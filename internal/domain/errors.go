package domain

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")

	// ErrSubscriptionGone marks a push endpoint the transport reports as
	// permanently invalid (404/410 from the push service). It is the only
	// transport error that triggers a side effect: the subscription is pruned.
	ErrSubscriptionGone = errors.New("subscription gone")
)
