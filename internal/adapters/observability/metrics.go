package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crowdmeter", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crowdmeter", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	PushSends = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crowdmeter", Name: "push_sends_total", Help: "Outbound push sends."},
		[]string{"result"}, // result: ok|gone|error
	)
	PushLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crowdmeter", Name: "push_send_duration_seconds",
			Help:    "Outbound push send duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	SubscriptionPrunes = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "crowdmeter", Name: "subscription_prunes_total", Help: "Stale push subscriptions removed."},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "crowdmeter", Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
)

func Serve(addr string) {
	if addr == "" {
		return // disabled
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, PushSends, PushLatency, SubscriptionPrunes, CacheEvents)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObservePush(result string, dur time.Duration) { // result: ok|gone|error
	PushSends.WithLabelValues(result).Inc()
	PushLatency.WithLabelValues(result).Observe(dur.Seconds())
}

func ObservePrune() { SubscriptionPrunes.Inc() }

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}
