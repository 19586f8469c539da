// Package notify delivers lifecycle events to participants over websocket and push channels.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher sends events to users or groups. Delivery is best-effort and at most once.
type Dispatcher interface {
	SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error
	SendToGroup(ctx context.Context, groupKey string, eventType string, payload interface{}) error
}

// Envelope is the frame written to realtime clients.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

// UserGroup is the group every connection of a user joins.
func UserGroup(userID uuid.UUID) string {
	return "user:" + userID.String()
}

func encode(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: eventType, Payload: raw, SentAt: time.Now().UTC()})
}

// Fanout forwards every event to all channels and logs channel failures.
type Fanout struct {
	channels []Dispatcher
	logger   *zap.Logger
}

var _ Dispatcher = (*Fanout)(nil)

// NewFanout combines channels; nil channels are skipped.
func NewFanout(logger *zap.Logger, channels ...Dispatcher) *Fanout {
	f := &Fanout{logger: logger}
	for _, ch := range channels {
		if ch != nil {
			f.channels = append(f.channels, ch)
		}
	}
	return f
}

func (f *Fanout) SendToUser(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) error {
	for _, ch := range f.channels {
		if err := ch.SendToUser(ctx, userID, eventType, payload); err != nil {
			f.logger.Warn("notification channel failed",
				zap.String("user_id", userID.String()),
				zap.String("event", eventType),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (f *Fanout) SendToGroup(ctx context.Context, groupKey string, eventType string, payload interface{}) error {
	for _, ch := range f.channels {
		if err := ch.SendToGroup(ctx, groupKey, eventType, payload); err != nil {
			f.logger.Warn("notification channel failed",
				zap.String("group", groupKey),
				zap.String("event", eventType),
				zap.Error(err),
			)
		}
	}
	return nil
}
