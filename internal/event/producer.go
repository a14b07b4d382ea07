package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/verdantlabs/verdant/internal/domain"
	pkgkafka "github.com/verdantlabs/verdant/pkg/kafka"
)

// Kafka topics for the domain events this service emits.
const (
	TopicUserRegistered = "verdant.user.registered"
	TopicUserUpdated    = "verdant.user.updated"
	TopicUserDeleted    = "verdant.user.deleted"
	TopicSessionRevoked = "verdant.session.revoked"
)

const (
	AggregateTypeUser    = "user"
	AggregateTypeSession = "session"
)

// Source identifier stamped on every event.
const Source = "verdant-backend"

// UserData is the payload for user.registered and user.updated events.
type UserData struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// SessionRevokedData is the payload for a session.revoked event.
type SessionRevokedData struct {
	SessionID int64  `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Reason    string `json:"reason"`
}

// Publisher is the subset of the Kafka producer the event layer depends on.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes domain events to Kafka. Publish failures are the
// caller's to log; none of them abort the request that triggered them.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new domain event producer.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserRegistered, user)
}

// PublishUserUpdated publishes a user.updated event.
func (p *Producer) PublishUserUpdated(ctx context.Context, user *domain.User) error {
	return p.publishUser(ctx, TopicUserUpdated, user)
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, id int64, email string) error {
	data := UserDeletedData{ID: id, Email: email}

	event, err := pkgkafka.NewEvent(TopicUserDeleted, strconv.FormatInt(id, 10), AggregateTypeUser, Source, data)
	if err != nil {
		return fmt.Errorf("create user.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserDeleted, event); err != nil {
		return fmt.Errorf("publish user.deleted event: %w", err)
	}

	return nil
}

// PublishSessionRevoked publishes a session.revoked event.
func (p *Producer) PublishSessionRevoked(ctx context.Context, sessionID, userID int64, reason string) error {
	data := SessionRevokedData{SessionID: sessionID, UserID: userID, Reason: reason}

	event, err := pkgkafka.NewEvent(TopicSessionRevoked, strconv.FormatInt(sessionID, 10), AggregateTypeSession, Source, data)
	if err != nil {
		return fmt.Errorf("create session.revoked event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicSessionRevoked, event); err != nil {
		return fmt.Errorf("publish session.revoked event: %w", err)
	}

	p.logger.DebugContext(ctx, "published session.revoked event",
		slog.Int64("session_id", sessionID),
		slog.Int64("user_id", userID),
		slog.String("reason", reason),
	)

	return nil
}

func (p *Producer) publishUser(ctx context.Context, topic string, user *domain.User) error {
	data := UserData{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
		IsActive: user.IsActive,
	}

	event, err := pkgkafka.NewEvent(topic, strconv.FormatInt(user.ID, 10), AggregateTypeUser, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published user event",
		slog.String("topic", topic),
		slog.Int64("user_id", user.ID),
	)

	return nil
}
