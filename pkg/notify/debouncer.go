package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/shared"
)

const debounceStateKey = "notify_debounce_state"

// DebounceState batches completion notifications: a burst of finished
// transfers produces one webhook call once the burst has been quiet for the
// debounce window.
type DebounceState struct {
	LastCompletionTime int64 `json:"last_completion_time"`
	CompletedCount     int   `json:"completed_count"`
	PendingTaskExists  bool  `json:"pending_task_exists"`
}

type Debouncer struct {
	redisClient *redis.Client
	asyncClient *asynq.Client
	config      *config.NotifyConfig
	logger      *logger.Logger
}

func NewDebouncer(redisClient *redis.Client, asyncClient *asynq.Client, config *config.NotifyConfig, logger *logger.Logger) *Debouncer {
	return &Debouncer{
		redisClient: redisClient,
		asyncClient: asyncClient,
		config:      config,
		logger:      logger,
	}
}

// TriggerNotify records a completed transfer and, if no notification task is
// pending, schedules one after the debounce window.
func (d *Debouncer) TriggerNotify(ctx context.Context) error {
	if !d.config.Enabled || d.config.WebhookURL == "" {
		return nil
	}

	state, err := d.getState(ctx)
	if err != nil {
		return fmt.Errorf("failed to get debounce state: %w", err)
	}

	state.LastCompletionTime = time.Now().Unix()
	state.CompletedCount++

	if !state.PendingTaskExists {
		state.PendingTaskExists = true

		if err := d.saveState(ctx, state); err != nil {
			return fmt.Errorf("failed to save debounce state: %w", err)
		}

		delay := time.Duration(d.config.DebounceMinutes) * time.Minute
		payload, err := json.Marshal(shared.NotifyPayload{WebhookURL: d.config.WebhookURL})
		if err != nil {
			return fmt.Errorf("failed to marshal notify payload: %w", err)
		}

		notifyTask := asynq.NewTask(shared.TaskTypeNotify, payload)
		if _, err := d.asyncClient.Enqueue(notifyTask, asynq.ProcessIn(delay)); err != nil {
			return fmt.Errorf("failed to enqueue notify task: %w", err)
		}

		d.logger.Info("notify debounce task created", map[string]any{
			"delay_minutes": d.config.DebounceMinutes,
		})
		return nil
	}

	if err := d.saveState(ctx, state); err != nil {
		return fmt.Errorf("failed to save debounce state: %w", err)
	}

	d.logger.Debug("notify debounce request updated", map[string]any{
		"completed_count": state.CompletedCount,
	})
	return nil
}

// ShouldNotify reports whether the debounce window has been quiet long enough
// for the pending notification to fire.
func (d *Debouncer) ShouldNotify(ctx context.Context) (bool, error) {
	state, err := d.getState(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get debounce state: %w", err)
	}

	window := int64(d.config.DebounceMinutes * 60)
	if time.Now().Unix()-state.LastCompletionTime < window {
		return false, nil
	}
	return true, nil
}

// ConsumeState returns the accumulated state and resets it for the next
// batch.
func (d *Debouncer) ConsumeState(ctx context.Context) (*DebounceState, error) {
	state, err := d.getState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get debounce state: %w", err)
	}

	consumed := *state
	state.CompletedCount = 0
	state.PendingTaskExists = false
	if err := d.saveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save debounce state: %w", err)
	}
	return &consumed, nil
}

func (d *Debouncer) getState(ctx context.Context) (*DebounceState, error) {
	result, err := d.redisClient.Get(ctx, debounceStateKey).Result()
	if err != nil {
		if err == redis.Nil {
			return &DebounceState{}, nil
		}
		return nil, err
	}

	var state DebounceState
	if err := json.Unmarshal([]byte(result), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal debounce state: %w", err)
	}
	return &state, nil
}

func (d *Debouncer) saveState(ctx context.Context, state *DebounceState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal debounce state: %w", err)
	}

	expiration := time.Duration(d.config.DebounceMinutes*2) * time.Minute
	return d.redisClient.Set(ctx, debounceStateKey, data, expiration).Err()
}
