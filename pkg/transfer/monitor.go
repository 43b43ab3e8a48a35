package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gridsync/pkg/logger"
)

// Decision is the consumer's reply to a reported error event.
type Decision int

const (
	// Continue keeps monitoring the task.
	Continue Decision = iota
	// Cancel cancels the remote task and waits for confirmation.
	Cancel
)

// ErrMonitorDone is returned by Next after the terminal event has been
// delivered.
var ErrMonitorDone = errors.New("transfer monitor exhausted")

// cancelPollInterval is the short fixed poll used while waiting for a
// cancellation to be confirmed.
const cancelPollInterval = time.Second

// MonitorEvent is one value produced by the monitoring loop: either a new
// remote error event (Event set, Finished false) or the terminal status
// (Status set, Finished true, Success reflecting the final task status).
type MonitorEvent struct {
	Success  bool
	Finished bool
	Event    *Event
	Status   *TaskStatus
}

// Monitor watches a submitted task until it is no longer active. It is a
// pull-based iterator: each Next call takes the consumer's decision about the
// previously reported error event and returns the next event. The decision is
// consumed before any further remote poll occurs.
//
// Error events carry no unique id, so they are deduplicated by timestamp. If
// two errors share a timestamp, only the one listed first by the service (the
// chronologically last, as events are listed most recent first) is surfaced.
type Monitor struct {
	client     Client
	taskID     string
	interval   time.Duration
	inactivity time.Duration
	seen       map[string]struct{}
	pending    []Event
	lastWasErr bool
	done       bool
	logger     *logger.Logger
}

// Next returns the next monitor event. The decision applies to the error
// event returned by the previous call and is ignored otherwise. After the
// terminal event has been returned, Next returns ErrMonitorDone.
func (m *Monitor) Next(ctx context.Context, decision Decision) (*MonitorEvent, error) {
	if m.done {
		return nil, ErrMonitorDone
	}

	if m.lastWasErr && decision == Cancel {
		if err := m.cancel(ctx); err != nil {
			return nil, err
		}
		// Drop the rest of the current batch; the task is confirmed
		// inactive, so the loop below falls through to the terminal
		// status.
		m.pending = nil
	}
	m.lastWasErr = false

	for {
		for len(m.pending) > 0 {
			event := m.pending[0]
			m.pending = m.pending[1:]

			if event.IsError {
				if _, dup := m.seen[event.Time]; dup {
					continue
				}
				m.seen[event.Time] = struct{}{}
				m.lastWasErr = true
				reported := event
				return &MonitorEvent{Event: &reported}, nil
			}

			if event.Code == EventCodeProgress {
				deadline := time.Now().UTC().Add(m.inactivity)
				if err := m.client.UpdateDeadline(ctx, m.taskID, deadline); err != nil {
					return nil, fmt.Errorf("advance deadline of task %s: %w", m.taskID, err)
				}
				m.logger.Debug("task made progress, deadline advanced", map[string]any{
					"task_id":  m.taskID,
					"deadline": deadline.Format(time.RFC3339),
				})
			}
		}

		inactive, err := m.client.WaitUntilInactive(ctx, m.taskID, m.interval, m.interval)
		if err != nil {
			return nil, fmt.Errorf("wait on task %s: %w", m.taskID, err)
		}
		if inactive {
			break
		}

		events, err := m.client.ListEvents(ctx, m.taskID)
		if err != nil {
			return nil, fmt.Errorf("list events of task %s: %w", m.taskID, err)
		}
		m.pending = events
	}

	status, err := m.client.GetTask(ctx, m.taskID)
	if err != nil {
		return nil, fmt.Errorf("fetch final status of task %s: %w", m.taskID, err)
	}

	m.done = true
	return &MonitorEvent{
		Success:  status.Status == StatusSucceeded,
		Finished: true,
		Status:   status,
	}, nil
}

func (m *Monitor) cancel(ctx context.Context) error {
	if err := m.client.Cancel(ctx, m.taskID); err != nil {
		return fmt.Errorf("cancel task %s: %w", m.taskID, err)
	}
	m.logger.Info("transfer cancellation requested", map[string]any{
		"task_id": m.taskID,
	})

	for {
		inactive, err := m.client.WaitUntilInactive(ctx, m.taskID, cancelPollInterval, cancelPollInterval)
		if err != nil {
			return fmt.Errorf("wait for cancellation of task %s: %w", m.taskID, err)
		}
		if inactive {
			return nil
		}
	}
}
