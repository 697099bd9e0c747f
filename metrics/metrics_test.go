package metrics

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-session-auth"
)

func TestSinkCountsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventLoginSuccess}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventSessionRejected,
		Metadata:  map[string]any{"reason": "superseded"},
	}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{
		EventType: auth.ActivityEventLoginFailure,
		Metadata:  map[string]any{"reason": "mismatch"},
	}))
	require.NoError(t, sink.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSessionRejected}))

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.EventsTotal.WithLabelValues(string(auth.ActivityEventLoginSuccess))))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.EventsTotal.WithLabelValues(string(auth.ActivityEventSessionRejected))))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.RejectionsTotal.WithLabelValues("superseded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.RejectionsTotal.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.LoginFailuresTotal.WithLabelValues("mismatch")))
}

func TestSinkExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventLogout}))

	expected := `
# HELP sessionauth_events_total Total authentication activity events by type.
# TYPE sessionauth_events_total counter
sessionauth_events_total{event="auth.logout"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "sessionauth_events_total"))
}

func TestNewSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewSink(reg)
	require.NoError(t, err)

	_, err = NewSink(reg)
	assert.Error(t, err)
}

func TestSinkWiredIntoActivityFanOut(t *testing.T) {
	sink, err := NewSink(prometheus.NewRegistry())
	require.NoError(t, err)

	var seen []auth.ActivityEventType
	fanout := auth.MultiActivitySink{sink, auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
		seen = append(seen, e.EventType)
		return nil
	})}

	require.NoError(t, fanout.Record(context.Background(), auth.ActivityEvent{EventType: auth.ActivityEventSignup}))
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSignup}, seen)
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.EventsTotal.WithLabelValues(string(auth.ActivityEventSignup))))
}
