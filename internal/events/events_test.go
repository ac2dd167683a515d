package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/outreach-monitor/internal/config"
)

func TestMessageKeyedByCampaign(t *testing.T) {
	evt := New(TypePause, OutcomeFailed, "c1").WithError(errors.New("upstream down"))

	record, err := message(evt)
	require.NoError(t, err)
	assert.Equal(t, []byte("c1"), record.Key)
	assert.Equal(t, evt.OccurredAt, record.Time)
	require.Len(t, record.Headers, 1)
	assert.Equal(t, "campaign.pause", string(record.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(record.Value, &decoded))
	assert.Equal(t, "failed", decoded["outcome"])
	assert.Equal(t, "upstream down", decoded["error"])
	assert.NotContains(t, decoded, "object_id")
}

func TestMessageFallsBackToSessionKey(t *testing.T) {
	evt := New(TypeSessionOpen, OutcomeSucceeded, "")
	evt.SessionID = "s1"

	record, err := message(evt)
	require.NoError(t, err)
	assert.Equal(t, []byte("s1"), record.Key)
}

func TestRecorderOutcomes(t *testing.T) {
	rec := &Recorder{}
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, New(TypePause, OutcomeRequested, "c1")))
	require.NoError(t, rec.Publish(ctx, New(TypeResume, OutcomeRequested, "c1")))
	require.NoError(t, rec.Publish(ctx, New(TypePause, OutcomeSucceeded, "c1")))

	assert.Equal(t, []Outcome{OutcomeRequested, OutcomeSucceeded}, rec.Outcomes(TypePause))
	assert.Len(t, rec.Events(), 3)
}

func TestNewKafkaRequiresBrokers(t *testing.T) {
	_, err := NewKafka(config.KafkaConfig{})
	require.Error(t, err)

	k, err := NewKafka(config.KafkaConfig{Brokers: []string{"127.0.0.1:9092"}})
	require.NoError(t, err)
	w := k.NewWriter("outreach.monitor.events")
	assert.Equal(t, "outreach.monitor.events", w.Topic)
	require.NoError(t, w.Close())
}
