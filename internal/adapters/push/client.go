package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"crowdmeter/internal/adapters/observability"
	"crowdmeter/internal/domain"
)

// Client sends Web Push (VAPID) notifications. Sends are client-side rate
// limited and bounded by a per-send timeout so a slow push service cannot
// accumulate in-flight work without limit.
type Client struct {
	hc         *http.Client
	subscriber string
	vapidPub   string
	vapidPriv  string
	rl         *rate.Limiter
	timeout    time.Duration
}

func New(subscriber, vapidPub, vapidPriv string, rps int, timeout time.Duration) (*Client, error) {
	if vapidPub == "" || vapidPriv == "" {
		return nil, fmt.Errorf("VAPID key pair is required")
	}
	if rps <= 0 {
		rps = 20
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:         &http.Client{Timeout: timeout},
		subscriber: subscriber,
		vapidPub:   vapidPub,
		vapidPriv:  vapidPriv,
		rl:         rate.NewLimiter(rate.Limit(rps), rps),
		timeout:    timeout,
	}, nil
}

func (c *Client) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      c.hc,
		Subscriber:      c.subscriber,
		VAPIDPublicKey:  c.vapidPub,
		VAPIDPrivateKey: c.vapidPriv,
		TTL:             60,
	})
	if err != nil {
		observability.ObservePush("error", time.Since(start))
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	serr := classifyStatus(resp.StatusCode)
	observability.ObservePush(resultLabel(serr), time.Since(start))
	return serr
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return domain.ErrSubscriptionGone
	case code >= 400:
		return fmt.Errorf("push service status %d", code)
	}
	return nil
}

func resultLabel(err error) string {
	switch err {
	case nil:
		return "ok"
	case domain.ErrSubscriptionGone:
		return "gone"
	}
	return "error"
}

// Disabled is the transport used when no VAPID keys are configured; every
// send succeeds without doing anything.
type Disabled struct{}

func (Disabled) Send(ctx context.Context, sub domain.PushSubscription, payload []byte) error {
	log.Debug().Str("endpoint", sub.Endpoint).Msg("push disabled, dropping payload")
	return nil
}
