package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/drip-mailer/config"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Lifecycle event types
const (
	EventOwnerScheduled = "owner.scheduled"
	EventOwnerCompleted = "owner.completed"
	EventOwnerCancelled = "owner.cancelled"
)

// LifecycleEvent announces a campaign or follow-up status change
type LifecycleEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OwnerKind  string    `json:"owner_kind"`
	OwnerID    uint      `json:"owner_id"`
	CampaignID uint      `json:"campaign_id,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewLifecycleEvent stamps an event with an id and the current time
func NewLifecycleEvent(eventType, ownerKind string, ownerID, campaignID uint, count int) LifecycleEvent {
	return LifecycleEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		OwnerKind:  ownerKind,
		OwnerID:    ownerID,
		CampaignID: campaignID,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher emits lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
	Close() error
}

// NewEventPublisher returns an AMQP publisher when the broker is enabled, a no-op one otherwise
func NewEventPublisher(cfg config.BrokerConfig) (EventPublisher, error) {
	if !cfg.Enabled {
		return NoopEventPublisher{}, nil
	}
	return NewAMQPEventPublisher(cfg)
}

// AMQPEventPublisher publishes JSON events to a durable queue
type AMQPEventPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	queue    string
}

func NewAMQPEventPublisher(cfg config.BrokerConfig) (*AMQPEventPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	logrus.WithField("queue", cfg.Queue).Info("event publisher connected")
	return &AMQPEventPublisher{
		conn:     conn,
		channel:  channel,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
	}, nil
}

func (p *AMQPEventPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	routingKey := p.queue
	if p.exchange != "" {
		routingKey = event.Type
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Type:         event.Type,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (p *AMQPEventPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			logrus.WithError(err).Warn("error closing broker channel")
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			logrus.WithError(err).Warn("error closing broker connection")
		}
	}
	return nil
}

// NoopEventPublisher drops events
type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, LifecycleEvent) error { return nil }
func (NoopEventPublisher) Close() error                                  { return nil }
