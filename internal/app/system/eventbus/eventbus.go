// Package eventbus publishes domain events for other services to consume.
package eventbus

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// TopicDefault is used when no topic is configured.
const TopicDefault = "airodental.entitlements"

// EventPlanChanged is published after an organization's mirrored plan changes.
const EventPlanChanged = "organization.plan_changed"

// PlanChanged is the payload of EventPlanChanged.
type PlanChanged struct {
	Type               string    `json:"type"`
	OrganizationID     string    `json:"organizationId"`
	ActivePlanID       *string   `json:"activePlanId"`
	SubscriptionStatus string    `json:"subscriptionStatus"`
	SubscriptionID     string    `json:"subscriptionId,omitempty"`
	DeliveryID         string    `json:"deliveryId,omitempty"`
	OccurredAt         time.Time `json:"occurredAt"`
}

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends JSON-encoded events keyed for partition affinity.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
	Close() error
}

// KafkaPublisher writes to one topic.
type KafkaPublisher struct {
	writer Writer
}

// NewKafkaPublisher connects to a comma-separated broker list.
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	if topic == "" {
		topic = TopicDefault
	}
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

// NewKafkaPublisherWithWriter injects a writer (tests).
func NewKafkaPublisherWithWriter(w Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish marshals value to JSON and writes it under key.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b})
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }
