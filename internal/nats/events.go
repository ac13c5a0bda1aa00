package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

const (
	// StreamName is the name of the chat events stream.
	StreamName = "CHAT_EVENTS"

	// SubjectPrefix is the prefix for all chat event subjects.
	SubjectPrefix = "chat"
)

// EventBus publishes routing-core events to JetStream and serves replay and
// live subscriptions for agent-facing transports. It implements
// events.Publisher.
type EventBus struct {
	client *Client
}

// NewEventBus creates an event bus over a connected client.
func NewEventBus(client *Client) *EventBus {
	return &EventBus{client: client}
}

// EnsureStream ensures the chat events stream exists with proper
// configuration.
func (b *EventBus) EnsureStream(ctx context.Context) error {
	js := b.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      30 * 24 * time.Hour,
		MaxBytes:    10 * 1024 * 1024 * 1024, // 10GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Routing-core chat events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for one event.
func EventSubject(tenantID, conversationID string, eventType model.EventType) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, tenantID, conversationID, eventType)
}

// ConversationFilter returns the filter subject for all events in a
// conversation.
func ConversationFilter(tenantID, conversationID string) string {
	return fmt.Sprintf("%s.%s.%s.>", SubjectPrefix, tenantID, conversationID)
}

// Publish publishes a chat event, filling in its stream sequence on success.
func (b *EventBus) Publish(ctx context.Context, event *model.ChatEvent) error {
	subject := EventSubject(event.TenantID, event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := b.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	event.Sequence = ack.Sequence
	return nil
}

// FetchEvents retrieves events for a conversation starting after a sequence,
// for SSE replay on reconnect.
func (b *EventBus) FetchEvents(ctx context.Context, tenantID, conversationID string, afterSequence uint64, limit int) ([]model.ChatEvent, uint64, bool, error) {
	js := b.client.JetStream()

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: ConversationFilter(tenantID, conversationID),
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch events: %w", err)
	}

	var out []model.ChatEvent
	var lastSequence uint64
	for msg := range batch.Messages() {
		var event model.ChatEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			event.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}
		out = append(out, event)
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, 0, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	return out, lastSequence, len(out) == limit, nil
}

// SubscribeLive delivers events for a conversation as they are published.
// The returned unsubscribe function must be called when the consumer is
// done.
func (b *EventBus) SubscribeLive(tenantID, conversationID string, ch chan *model.ChatEvent) (func(), error) {
	sub, err := b.client.Conn().Subscribe(ConversationFilter(tenantID, conversationID), func(msg *nats.Msg) {
		var event model.ChatEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return
		}
		select {
		case ch <- &event:
		default:
			// Slow consumer: drop rather than block the NATS callback.
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return func() { _ = sub.Unsubscribe() }, nil
}
