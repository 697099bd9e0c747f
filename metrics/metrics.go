// Package metrics exposes authentication activity as Prometheus metrics.
//
// Metric naming follows Prometheus conventions:
//   - sessionauth_ prefix for all metrics
//   - _total suffix for counters
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	auth "github.com/goliatone/go-session-auth"
)

// Sink counts activity events. It implements auth.ActivitySink.
type Sink struct {
	// EventsTotal counts activity events by type.
	EventsTotal *prometheus.CounterVec

	// RejectionsTotal counts rejected credentials by reason.
	RejectionsTotal *prometheus.CounterVec

	// LoginFailuresTotal counts failed local logins by reason.
	LoginFailuresTotal *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Sink)(nil)

// NewSink creates the collectors and registers them with reg. A nil reg
// falls back to the default registerer.
func NewSink(reg prometheus.Registerer) (*Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &Sink{
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionauth_events_total",
				Help: "Total authentication activity events by type.",
			},
			[]string{"event"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionauth_session_rejections_total",
				Help: "Total session credentials rejected by reason.",
			},
			[]string{"reason"},
		),
		LoginFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionauth_login_failures_total",
				Help: "Total failed local logins by reason.",
			},
			[]string{"reason"},
		),
	}

	for _, c := range []prometheus.Collector{s.EventsTotal, s.RejectionsTotal, s.LoginFailuresTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Record implements auth.ActivitySink.
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.EventsTotal.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case auth.ActivityEventSessionRejected:
		s.RejectionsTotal.WithLabelValues(reason(event)).Inc()
	case auth.ActivityEventLoginFailure:
		s.LoginFailuresTotal.WithLabelValues(reason(event)).Inc()
	}

	return nil
}

func reason(event auth.ActivityEvent) string {
	if r, ok := event.Metadata["reason"].(string); ok && r != "" {
		return r
	}
	return "unknown"
}
