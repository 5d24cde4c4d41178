package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type ProgramAction string

const (
	ProgramCreated ProgramAction = "created"
	ProgramUpdated ProgramAction = "updated"
	ProgramDeleted ProgramAction = "deleted"
)

// ProgramEvent announces a change to a stored program.
type ProgramEvent struct {
	ProgramID  string        `json:"programId"`
	Action     ProgramAction `json:"action"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// EventPublisher publishes program events to one topic.
type EventPublisher interface {
	PublishProgramEvent(ctx context.Context, ev ProgramEvent) error
}

type topicEventPublisher struct {
	pub   Publisher
	topic string
}

// NewEventPublisher returns a publisher for topic. An empty topic disables
// publishing.
func NewEventPublisher(pub Publisher, topic string) EventPublisher {
	if pub == nil || topic == "" {
		return NopEventPublisher{}
	}
	return &topicEventPublisher{pub: pub, topic: topic}
}

func (p *topicEventPublisher) PublishProgramEvent(ctx context.Context, ev ProgramEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal program event: %w", err)
	}
	attrs := map[string]string{"action": string(ev.Action), "programId": ev.ProgramID}
	if _, err := p.pub.Publish(ctx, p.topic, payload, attrs); err != nil {
		return err
	}
	return nil
}

// NopEventPublisher drops every event.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishProgramEvent(context.Context, ProgramEvent) error { return nil }
