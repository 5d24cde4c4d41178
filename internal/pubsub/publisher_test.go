package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"meditation/internal/config"

	ps "cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topic   string
	payload []byte
	attrs   map[string]string
	err     error
}

func (r *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte, attrs map[string]string) (string, error) {
	r.topic, r.payload, r.attrs = topic, payload, attrs
	return "1", r.err
}

func TestNewPublisherInvalidProject(t *testing.T) {
	cfg := &config.Config{GCPProjectID: ""}
	_, err := NewPublisher(context.Background(), cfg)
	assert.Error(t, err, "expected error when project ID is empty")
}

func TestEventPublisherEncodesEvent(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewEventPublisher(rec, "programs")
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, pub.PublishProgramEvent(context.Background(), ProgramEvent{ProgramID: "p1", Action: ProgramDeleted, OccurredAt: at}))
	assert.Equal(t, "programs", rec.topic)
	assert.Equal(t, "deleted", rec.attrs["action"])

	var got ProgramEvent
	require.NoError(t, json.Unmarshal(rec.payload, &got))
	assert.Equal(t, "p1", got.ProgramID)
	assert.True(t, at.Equal(got.OccurredAt))

	rec.err = errors.New("unavailable")
	assert.Error(t, pub.PublishProgramEvent(context.Background(), ProgramEvent{ProgramID: "p1"}))
}

func TestEventPublisherWithoutTopicIsNop(t *testing.T) {
	rec := &recordingPublisher{}
	pub := NewEventPublisher(rec, "")
	assert.IsType(t, NopEventPublisher{}, pub)
	assert.NoError(t, pub.PublishProgramEvent(context.Background(), ProgramEvent{}))
	assert.Empty(t, rec.topic)
}

func TestPublishWithEmulator(t *testing.T) {
	emulator := os.Getenv("PUBSUB_EMULATOR_HOST")
	if emulator == "" {
		t.Skip("PUBSUB_EMULATOR_HOST is not set, skip emulator integration test")
	}

	ctx := context.Background()
	cfg := &config.Config{GCPProjectID: "test-project", PubSubEmulatorHost: emulator}
	pub, err := NewPublisher(ctx, cfg)
	require.NoError(t, err)
	defer pub.Close()

	topicName := "programs-test-topic"
	topic, err := pub.client.CreateTopic(ctx, topicName)
	require.NoError(t, err)
	sub, err := pub.client.CreateSubscription(ctx, "programs-test-sub", ps.SubscriptionConfig{Topic: topic})
	require.NoError(t, err)

	events := NewEventPublisher(pub, topicName)
	require.NoError(t, events.PublishProgramEvent(ctx, ProgramEvent{ProgramID: "p1", Action: ProgramCreated, OccurredAt: time.Now()}))

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c := make(chan *ps.Message, 1)
	go func() {
		_ = sub.Receive(recvCtx, func(ctx context.Context, m *ps.Message) {
			m.Ack()
			select {
			case c <- m:
			default:
			}
			cancel()
		})
	}()

	select {
	case m := <-c:
		assert.Equal(t, "created", m.Attributes["action"])
		var ev ProgramEvent
		require.NoError(t, json.Unmarshal(m.Data, &ev))
		assert.Equal(t, "p1", ev.ProgramID)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message from emulator subscription")
	}
}
