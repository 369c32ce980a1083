package otlp

import (
	"testing"
	"time"

	"github.com/streamfold/wan-publisher/internal/wanstats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otlpMetrics "go.opentelemetry.io/proto/otlp/metrics/v1"
	"google.golang.org/protobuf/proto"
)

func TestStatusMetrics_RoundTrip(t *testing.T) {
	for _, state := range []wanstats.PublisherState{wanstats.StateReplicating, wanstats.StatePaused, wanstats.StateStopped} {
		t.Run(state.String(), func(t *testing.T) {
			s := wanstats.NewPublisherStatus()
			s.SetConnected(true)
			s.SetOutboundQueueSize(17)
			s.SetState(state)
			s.RecordPublishedEvent(5)
			s.RecordPublishedEvent(9)
			s.SetSentMapEventCounters(map[string]*wanstats.EventCounters{"orders": {}})

			rm := StatusMetrics("eu-west", "instance-1", s, time.Now())

			// survive the wire
			data, err := proto.Marshal(rm)
			require.NoError(t, err)
			var decoded otlpMetrics.ResourceMetrics
			require.NoError(t, proto.Unmarshal(data, &decoded))

			name, got := StatusFromMetrics(&decoded)
			assert.Equal(t, "eu-west", name)
			assert.Equal(t, s.Document(), got.Document())
			assert.Equal(t, state, got.State())
			assert.Nil(t, got.SentMapEventCounters())
		})
	}
}

func TestStatusMetrics_Names(t *testing.T) {
	rm := StatusMetrics("eu-west", "instance-1", wanstats.NewPublisherStatus(), time.Unix(10, 0))

	require.Len(t, rm.GetScopeMetrics(), 1)
	names := make([]string, 0)
	for _, m := range rm.GetScopeMetrics()[0].GetMetrics() {
		names = append(names, m.GetName())
	}
	assert.Equal(t, []string{
		"wan.publisher.isConnected",
		"wan.publisher.totalPublishLatencies",
		"wan.publisher.totalPublishedEventCount",
		"wan.publisher.outboundQueueSize",
		"wan.publisher.paused",
		"wan.publisher.stopped",
	}, names)
}

func TestStatusFromMetrics_Defaults(t *testing.T) {
	name, s := StatusFromMetrics(&otlpMetrics.ResourceMetrics{})

	assert.Equal(t, "", name)
	assert.False(t, s.IsConnected())
	assert.Equal(t, int64(wanstats.Unknown), s.TotalPublishLatency())
	assert.Equal(t, int64(wanstats.Unknown), s.TotalPublishedEventCount())
	assert.Equal(t, int32(wanstats.Unknown), s.OutboundQueueSize())
	assert.Equal(t, wanstats.StateReplicating, s.State())
}

func TestStatusFromMetrics_StoppedWins(t *testing.T) {
	rm := &otlpMetrics.ResourceMetrics{
		Resource: NewResource("us-east", "instance-2"),
		ScopeMetrics: []*otlpMetrics.ScopeMetrics{{
			Metrics: []*otlpMetrics.Metric{
				gauge(wanstats.FieldStopped, 1, 0),
				gauge(wanstats.FieldPaused, 0, 0),
			},
		}},
	}

	name, s := StatusFromMetrics(rm)
	assert.Equal(t, "us-east", name)
	assert.Equal(t, wanstats.StateStopped, s.State())
}
