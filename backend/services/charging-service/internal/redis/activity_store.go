package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Activity mirrors a user's activity pointer for quick reads by client apps.
type Activity struct {
	UserID    uuid.UUID `json:"user_id"`
	ProcessID uuid.UUID `json:"process_id"`
	RequestID uuid.UUID `json:"request_id"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
}

// ActivityStore manages the activity cache.
type ActivityStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActivityStore returns redis-backed store.
func NewActivityStore(client *redis.Client, ttl time.Duration) *ActivityStore {
	return &ActivityStore{client: client, ttl: ttl}
}

func activityKey(userID uuid.UUID) string {
	return fmt.Sprintf("charging:activity:%s", userID)
}

// Save caches the activity.
func (s *ActivityStore) Save(ctx context.Context, activity Activity) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, activityKey(activity.UserID), data, s.ttl).Err()
}

// Get returns the cached activity, or nil when none is cached.
func (s *ActivityStore) Get(ctx context.Context, userID uuid.UUID) (*Activity, error) {
	result, err := s.client.Get(ctx, activityKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var activity Activity
	if err := json.Unmarshal([]byte(result), &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// Clear drops the cached activity only when it still points at processID.
func (s *ActivityStore) Clear(ctx context.Context, userID, processID uuid.UUID) error {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if current == nil || current.ProcessID != processID {
		return nil
	}
	return s.client.Del(ctx, activityKey(userID)).Err()
}
