package events

//go:generate mockgen -destination=../mocks/mock_publisher.go -package=mocks github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/events Publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
)

const source = "hr-admin-auth"

// Event types published by the auth service.
const (
	AccountCreated         = "account.created"
	AccountLoggedIn        = "account.logged_in"
	AccountLoggedOut       = "account.logged_out"
	AccountDeactivated     = "account.deactivated"
	AccountActivated       = "account.activated"
	AccountRoleChanged     = "account.role_changed"
	AccountSessionsRevoked = "account.sessions_revoked"
)

type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Source     string            `json:"source"`
	AccountID  string            `json:"accountId"`
	ActorID    string            `json:"actorId,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// New stamps an event with a fresh id. actorID is empty when the account
// acted on itself.
func New(eventType, accountID, actorID string, data map[string]string) Event {
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		Source:     source,
		AccountID:  accountID,
		ActorID:    actorID,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

// Publish keys messages by account id so one account's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AccountID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
