package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"gridsync/pkg/archive"
	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/notify"
	"gridsync/pkg/results"
	"gridsync/pkg/shared"
	"gridsync/pkg/transfer"
)

// TransferHandler consumes transfer tasks from the queue and drives them to
// completion with the bounded-retry driver.
type TransferHandler struct {
	client   transfer.Client
	config   *config.Config
	results  *results.Store
	archiver *archive.Archiver
	notifier *notify.Debouncer
	logger   *logger.Logger
}

func NewTransferHandler(client transfer.Client, config *config.Config, results *results.Store, archiver *archive.Archiver, notifier *notify.Debouncer) *TransferHandler {
	return &TransferHandler{
		client:   client,
		config:   config,
		results:  results,
		archiver: archiver,
		notifier: notifier,
		logger:   logger.NewDefault(),
	}
}

func (h *TransferHandler) Handle(ctx context.Context, asynqTask *asynq.Task) error {
	var payload shared.TransferPayload
	if err := json.Unmarshal(asynqTask.Payload(), &payload); err != nil {
		h.logger.Error("failed to unmarshal payload", err, nil)
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	jobID, _ := asynq.GetTaskID(ctx)

	h.logger.Info("starting transfer task", map[string]any{
		"job_id":      jobID,
		"source":      payload.SourceEndpoint,
		"destination": payload.DestinationEndpoint,
		"items":       len(payload.Paths),
	})

	entries := make([]transfer.PathEntry, 0, len(payload.Paths))
	for _, pair := range payload.Paths {
		entries = append(entries, transfer.PathEntry{
			Source:      pair.Source,
			Destination: pair.Destination,
		})
	}

	start := time.Now()
	result, err := transfer.Run(ctx, h.client, payload.SourceEndpoint, payload.DestinationEndpoint, entries, h.options(&payload))
	if err != nil {
		h.saveOutcome(ctx, jobID, &payload, &shared.TransferOutcome{
			JobID:               jobID,
			Success:             false,
			Error:               err.Error(),
			SourceEndpoint:      payload.SourceEndpoint,
			DestinationEndpoint: payload.DestinationEndpoint,
			Items:               len(payload.Paths),
			Duration:            time.Since(start).String(),
			CompletedAt:         time.Now().UTC(),
		})
		return fmt.Errorf("run transfer: %w", err)
	}

	outcome := &shared.TransferOutcome{
		JobID:               jobID,
		TaskID:              result.TaskID,
		Success:             result.Success,
		SourceEndpoint:      payload.SourceEndpoint,
		DestinationEndpoint: payload.DestinationEndpoint,
		Items:               len(payload.Paths),
		Duration:            time.Since(start).String(),
		CompletedAt:         time.Now().UTC(),
	}
	if !result.Success {
		outcome.Error = result.Error
	}
	h.saveOutcome(ctx, jobID, &payload, outcome)

	if h.archiver != nil && result.Status != nil {
		if err := h.archiver.ArchiveStatus(ctx, result.Status); err != nil {
			h.logger.Error("failed to archive task status", err, map[string]any{
				"task_id": result.TaskID,
			})
		}
	}

	if h.notifier != nil {
		if err := h.notifier.TriggerNotify(ctx); err != nil {
			h.logger.Error("failed to trigger completion notifier", err, map[string]any{
				"task_id": result.TaskID,
			})
		}
	}

	if !result.Success {
		return fmt.Errorf("transfer %s failed: %s", result.TaskID, result.Error)
	}

	h.logger.Info("transfer task finished", map[string]any{
		"job_id":   jobID,
		"task_id":  result.TaskID,
		"duration": outcome.Duration,
	})
	return nil
}

func (h *TransferHandler) options(payload *shared.TransferPayload) transfer.Options {
	opts := transfer.Options{
		Interval:          time.Duration(h.config.Transfer.IntervalSeconds) * time.Second,
		InactivityTimeout: time.Duration(h.config.Transfer.InactivityTimeoutSeconds) * time.Second,
		VerifyChecksum:    h.config.Transfer.VerifyChecksum,
		Retries:           h.config.Transfer.Retries,
	}
	if payload.IntervalSeconds > 0 {
		opts.Interval = time.Duration(payload.IntervalSeconds) * time.Second
	}
	if payload.InactivityTimeoutSeconds > 0 {
		opts.InactivityTimeout = time.Duration(payload.InactivityTimeoutSeconds) * time.Second
	}
	if payload.Retries != nil {
		opts.Retries = *payload.Retries
	}
	return opts
}

func (h *TransferHandler) saveOutcome(ctx context.Context, jobID string, payload *shared.TransferPayload, outcome *shared.TransferOutcome) {
	if jobID == "" {
		return
	}
	if err := h.results.Save(ctx, jobID, outcome); err != nil {
		h.logger.Error("failed to save transfer outcome", err, map[string]any{
			"job_id":      jobID,
			"source":      payload.SourceEndpoint,
			"destination": payload.DestinationEndpoint,
		})
	}
}
