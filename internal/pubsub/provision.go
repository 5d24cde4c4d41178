package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

const (
	topicRetention      = 7 * 24 * time.Hour
	subscriptionExpiry  = 31 * 24 * time.Hour
	subscriptionAckWait = 60 * time.Second
	maxDeliveryAttempts = 5
)

// TopicPlan names the resources one event topic needs: the topic itself, its
// dead-letter topic and a subscription on each.
type TopicPlan struct {
	Topic                  string
	DeadLetterTopic        string
	Subscription           string
	DeadLetterSubscription string
	PushEndpoint           string
}

// PlanFor derives resource names for a topic. An empty pushEndpoint yields
// pull subscriptions.
func PlanFor(topic, pushEndpoint string) (TopicPlan, error) {
	if topic == "" {
		return TopicPlan{}, errors.New("topic name is required")
	}
	return TopicPlan{
		Topic:                  topic,
		DeadLetterTopic:        topic + "-dlq",
		Subscription:           topic + "-sub",
		DeadLetterSubscription: topic + "-dlq-sub",
		PushEndpoint:           pushEndpoint,
	}, nil
}

// Provisioner creates topics and subscriptions on a Pub/Sub project.
type Provisioner struct {
	client *pubsub.Client
	logger zerolog.Logger
}

func NewProvisioner(client *pubsub.Client, logger zerolog.Logger) *Provisioner {
	return &Provisioner{client: client, logger: logger}
}

// Apply makes sure every resource in the plan exists. Existing subscriptions
// have their push endpoint and ack deadline brought in line.
func (p *Provisioner) Apply(ctx context.Context, plan TopicPlan) error {
	dlq, err := p.ensureTopic(ctx, plan.DeadLetterTopic)
	if err != nil {
		return err
	}
	topic, err := p.ensureTopic(ctx, plan.Topic)
	if err != nil {
		return err
	}

	retry := &pubsub.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}
	mainCfg := pubsub.SubscriptionConfig{
		Topic:            topic,
		PushConfig:       pubsub.PushConfig{Endpoint: plan.PushEndpoint},
		AckDeadline:      subscriptionAckWait,
		ExpirationPolicy: subscriptionExpiry,
		RetryPolicy:      retry,
		DeadLetterPolicy: &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     dlq.String(),
			MaxDeliveryAttempts: maxDeliveryAttempts,
		},
	}
	if err := p.ensureSubscription(ctx, plan.Subscription, mainCfg); err != nil {
		return err
	}

	dlqCfg := pubsub.SubscriptionConfig{
		Topic:            dlq,
		AckDeadline:      subscriptionAckWait,
		ExpirationPolicy: subscriptionExpiry,
		RetryPolicy:      retry,
	}
	return p.ensureSubscription(ctx, plan.DeadLetterSubscription, dlqCfg)
}

// Reset deletes every subscription and topic in the project. Only meant for
// the local emulator.
func (p *Provisioner) Reset(ctx context.Context) error {
	subs := p.client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list subscriptions: %w", err)
		}
		p.logger.Info().Str("subscription", sub.ID()).Msg("deleting subscription")
		if err := sub.Delete(ctx); err != nil {
			p.logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("failed to delete subscription")
		}
	}

	topics := p.client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("list topics: %w", err)
		}
		p.logger.Info().Str("topic", topic.ID()).Msg("deleting topic")
		if err := topic.Delete(ctx); err != nil {
			p.logger.Warn().Err(err).Str("topic", topic.ID()).Msg("failed to delete topic")
		}
	}
	return nil
}

func (p *Provisioner) ensureTopic(ctx context.Context, id string) (*pubsub.Topic, error) {
	topic := p.client.Topic(id)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", id, err)
	}
	if exists {
		p.logger.Info().Str("topic", id).Msg("topic already exists")
		return topic, nil
	}
	p.logger.Info().Str("topic", id).Dur("retention", topicRetention).Msg("creating topic")
	created, err := p.client.CreateTopicWithConfig(ctx, id, &pubsub.TopicConfig{RetentionDuration: topicRetention})
	if err != nil {
		return nil, fmt.Errorf("create topic %s: %w", id, err)
	}
	return created, nil
}

func (p *Provisioner) ensureSubscription(ctx context.Context, id string, cfg pubsub.SubscriptionConfig) error {
	sub := p.client.Subscription(id)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", id, err)
	}
	if !exists {
		p.logger.Info().Str("subscription", id).Str("endpoint", cfg.PushConfig.Endpoint).Msg("creating subscription")
		if _, err := p.client.CreateSubscription(ctx, id, cfg); err != nil {
			return fmt.Errorf("create subscription %s: %w", id, err)
		}
		return nil
	}

	existing, err := sub.Config(ctx)
	if err != nil {
		return fmt.Errorf("read subscription %s: %w", id, err)
	}
	if existing.PushConfig.Endpoint == cfg.PushConfig.Endpoint && existing.AckDeadline == cfg.AckDeadline {
		p.logger.Info().Str("subscription", id).Msg("subscription up to date")
		return nil
	}
	p.logger.Info().Str("subscription", id).Msg("updating subscription")
	_, err = sub.Update(ctx, pubsub.SubscriptionConfigToUpdate{
		PushConfig:  &cfg.PushConfig,
		AckDeadline: cfg.AckDeadline,
		RetryPolicy: cfg.RetryPolicy,
	})
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", id, err)
	}
	return nil
}
