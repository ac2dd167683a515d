// Package events publishes the monitor's operator actions (lifecycle commands, reply sends,
// session changes) as a JSON stream keyed by campaign.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Type names the operator action.
type Type string

const (
	TypePause        Type = "campaign.pause"
	TypeResume       Type = "campaign.resume"
	TypeReply        Type = "object.reply"
	TypeSessionOpen  Type = "session.open"
	TypeSessionClose Type = "session.close"
)

// Outcome is the stage of the action.
type Outcome string

const (
	OutcomeRequested Outcome = "requested"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomeUnconfirmed marks a reply whose send outlived the client timeout.
	OutcomeUnconfirmed Outcome = "unconfirmed"
)

// Event is one published record.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       Type      `json:"type"`
	Outcome    Outcome   `json:"outcome"`
	CampaignID string    `json:"campaign_id,omitempty"`
	ObjectID   string    `json:"object_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps a fresh event.
func New(typ Type, outcome Outcome, campaignID string) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		Outcome:    outcome,
		CampaignID: campaignID,
		OccurredAt: time.Now().UTC(),
	}
}

// WithError attaches a failure message.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Publisher emits events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// KafkaPublisher writes events to a topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher constructs a publisher for the given topic.
func NewKafkaPublisher(k *Kafka, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: k.NewWriter(topic)}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	record, err := message(evt)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("event publisher: write message: %w", err)
	}
	return nil
}

// Close closes the publisher.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// message keys by campaign so one campaign's events keep their order on a partition.
func message(evt Event) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("event publisher: marshal event: %w", err)
	}
	key := evt.CampaignID
	if key == "" {
		key = evt.SessionID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type)},
		},
	}, nil
}

// Noop discards events. Used when kafka is disabled.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Outcomes lists the outcomes recorded for one event type, in order.
func (r *Recorder) Outcomes(typ Type) []Outcome {
	var out []Outcome
	for _, evt := range r.Events() {
		if evt.Type == typ {
			out = append(out, evt.Outcome)
		}
	}
	return out
}
