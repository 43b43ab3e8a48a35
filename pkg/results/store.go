package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gridsync/pkg/shared"
)

// ErrNotFound is returned when no outcome is stored for a job id.
var ErrNotFound = errors.New("transfer outcome not found")

const keyPrefix = "transfer_outcome:"

// Store keeps transfer outcomes in redis, keyed by queue job id, so the HTTP
// API can answer status lookups after the job has left the queue.
type Store struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	return &Store{
		redisClient: redisClient,
		ttl:         ttl,
	}
}

func (s *Store) Save(ctx context.Context, jobID string, outcome *shared.TransferOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return s.redisClient.Set(ctx, keyPrefix+jobID, data, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, jobID string) (*shared.TransferOutcome, error) {
	result, err := s.redisClient.Get(ctx, keyPrefix+jobID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var outcome shared.TransferOutcome
	if err := json.Unmarshal([]byte(result), &outcome); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &outcome, nil
}
