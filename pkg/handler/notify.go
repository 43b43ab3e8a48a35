package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"gridsync/pkg/config"
	"gridsync/pkg/logger"
	"gridsync/pkg/notify"
	"gridsync/pkg/shared"
)

// NotifyHandler fires the debounced completion webhook. If transfers are
// still completing inside the debounce window, the task reschedules itself.
type NotifyHandler struct {
	config      *config.NotifyConfig
	debouncer   *notify.Debouncer
	asyncClient *asynq.Client
	httpClient  *http.Client
	logger      *logger.Logger
}

type webhookBody struct {
	CompletedTransfers int    `json:"completed_transfers"`
	LastCompletionTime string `json:"last_completion_time"`
}

func NewNotifyHandler(config *config.NotifyConfig, debouncer *notify.Debouncer, asyncClient *asynq.Client) *NotifyHandler {
	return &NotifyHandler{
		config:      config,
		debouncer:   debouncer,
		asyncClient: asyncClient,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger.NewDefault(),
	}
}

func (h *NotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload shared.NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %w", err)
	}

	shouldNotify, err := h.debouncer.ShouldNotify(ctx)
	if err != nil {
		return fmt.Errorf("failed to check notify condition: %w", err)
	}
	if !shouldNotify {
		delay := time.Duration(h.config.DebounceMinutes) * time.Minute
		newTask := asynq.NewTask(shared.TaskTypeNotify, t.Payload())

		if _, err := h.asyncClient.Enqueue(newTask, asynq.ProcessIn(delay)); err != nil {
			return fmt.Errorf("failed to reschedule notify task: %w", err)
		}

		h.logger.Info("notify task rescheduled due to debounce", map[string]any{
			"delay_minutes": h.config.DebounceMinutes,
		})
		return nil
	}

	state, err := h.debouncer.ConsumeState(ctx)
	if err != nil {
		return fmt.Errorf("failed to consume debounce state: %w", err)
	}
	if state.CompletedCount == 0 {
		h.logger.Debug("no completed transfers to notify about", nil)
		return nil
	}

	body, err := json.Marshal(webhookBody{
		CompletedTransfers: state.CompletedCount,
		LastCompletionTime: time.Unix(state.LastCompletionTime, 0).UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, payload.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}

	h.logger.Info("completion webhook delivered", map[string]any{
		"completed_transfers": state.CompletedCount,
		"status":              resp.StatusCode,
	})
	return nil
}
