package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/port"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

// eventEnvelope mirrors the wire format published by the role-administration
// service.
type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type roleGrantedPayload struct {
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	GrantedBy   string    `json:"granted_by"`
	GrantedAt   time.Time `json:"granted_at"`
}

type roleRevokedPayload struct {
	PrincipalID string    `json:"principal_id"`
	Role        string    `json:"role"`
	RevokedBy   string    `json:"revoked_by"`
	RevokedAt   time.Time `json:"revoked_at"`
	Reason      string    `json:"reason,omitempty"`
}

// RoleEventConsumer applies role grant/revoke events from the administration
// service to the local ledger. Both operations are idempotent: a repeated
// grant re-activates the same row and a revoke of an already-inactive
// assignment is ignored, so at-least-once delivery is safe.
type RoleEventConsumer struct {
	assignments port.RoleAssignmentRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleEventConsumer constructs a consumer that keeps the ledger current.
func NewRoleEventConsumer(assignments port.RoleAssignmentRepository, logger *zap.Logger) *RoleEventConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleEventConsumer{
		assignments: assignments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the consumer clock for deterministic testing.
func (c *RoleEventConsumer) WithClock(clock func() time.Time) *RoleEventConsumer {
	if clock != nil {
		c.now = clock
	}
	return c
}

// HandleMessage decodes a Kafka message and applies it to the ledger.
func (c *RoleEventConsumer) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if msg == nil {
		return fmt.Errorf("message is nil")
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	switch envelope.EventType {
	case domain.EventTypeRoleGranted:
		var payload roleGrantedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("decode role granted payload: %w", err)
		}
		return c.HandleGranted(ctx, domain.RoleGrantedEvent{
			EventID:     envelope.EventID,
			PrincipalID: payload.PrincipalID,
			Role:        payload.Role,
			GrantedBy:   payload.GrantedBy,
			GrantedAt:   payload.GrantedAt,
		})
	case domain.EventTypeRoleRevoked:
		var payload roleRevokedPayload
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("decode role revoked payload: %w", err)
		}
		return c.HandleRevoked(ctx, domain.RoleRevokedEvent{
			EventID:     envelope.EventID,
			PrincipalID: payload.PrincipalID,
			Role:        payload.Role,
			RevokedBy:   payload.RevokedBy,
			RevokedAt:   payload.RevokedAt,
			Reason:      payload.Reason,
		})
	default:
		c.logger.Debug("skip unhandled event type", zap.String("event_type", envelope.EventType))
		return nil
	}
}

// HandleGranted activates the assignment named by the event.
func (c *RoleEventConsumer) HandleGranted(ctx context.Context, event domain.RoleGrantedEvent) error {
	if event.PrincipalID == "" || event.Role == "" {
		return fmt.Errorf("role granted event missing principal or role")
	}

	at := event.GrantedAt.UTC()
	if at.IsZero() {
		at = c.now()
	}

	if _, err := c.assignments.Grant(ctx, event.PrincipalID, event.Role, at); err != nil {
		return fmt.Errorf("apply role grant: %w", err)
	}

	c.logger.Info("role grant applied",
		zap.String("event_id", event.EventID),
		zap.String("principal_id", event.PrincipalID),
		zap.String("role", event.Role),
	)
	return nil
}

// HandleRevoked soft-disables the assignment named by the event.
func (c *RoleEventConsumer) HandleRevoked(ctx context.Context, event domain.RoleRevokedEvent) error {
	if event.PrincipalID == "" || event.Role == "" {
		return fmt.Errorf("role revoked event missing principal or role")
	}

	at := event.RevokedAt.UTC()
	if at.IsZero() {
		at = c.now()
	}

	if err := c.assignments.Revoke(ctx, event.PrincipalID, event.Role, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Already inactive; replayed or out-of-order event.
			c.logger.Debug("skip revoke for inactive assignment",
				zap.String("principal_id", event.PrincipalID),
				zap.String("role", event.Role),
			)
			return nil
		}
		return fmt.Errorf("apply role revoke: %w", err)
	}

	c.logger.Info("role revoke applied",
		zap.String("event_id", event.EventID),
		zap.String("principal_id", event.PrincipalID),
		zap.String("role", event.Role),
		zap.String("reason", event.Reason),
	)
	return nil
}
