package publisher

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/shared"
)

type Publisher struct {
	client *asynq.Client
	config *config.Config
}

func NewPublisher(config *config.Config) (*Publisher, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)

	return &Publisher{
		client: client,
		config: config,
	}, nil
}

func (p *Publisher) Close() {
	_ = p.client.Close()
}

// PublishTransferTask validates and enqueues one transfer job. Returns the
// queue job id, which outcome lookups are keyed on.
func (p *Publisher) PublishTransferTask(payload *shared.TransferPayload) (string, error) {
	if payload.SourceEndpoint == "" {
		return "", fmt.Errorf("source endpoint is required")
	}
	if payload.DestinationEndpoint == "" {
		return "", fmt.Errorf("destination endpoint is required")
	}
	if len(payload.Paths) == 0 {
		return "", fmt.Errorf("at least one path pair is required")
	}
	for i, pair := range payload.Paths {
		if pair.Source == "" || pair.Destination == "" {
			return "", fmt.Errorf("path pair %d is incomplete", i)
		}
	}
	if payload.Retries != nil && *payload.Retries < -1 {
		return "", fmt.Errorf("retries must be >= -1")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	transferTask := asynq.NewTask(shared.TaskTypeTransfer, payloadBytes)
	info, err := p.client.Enqueue(
		transferTask,
		asynq.MaxRetry(p.config.Queue.MaxRetry),
		asynq.Timeout(time.Duration(p.config.Queue.TimeoutMinutes)*time.Minute),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue task: %w", err)
	}

	logger.Info("transfer task enqueued", map[string]any{
		"job_id":      info.ID,
		"queue":       info.Queue,
		"source":      payload.SourceEndpoint,
		"destination": payload.DestinationEndpoint,
		"items":       len(payload.Paths),
	})
	return info.ID, nil
}
