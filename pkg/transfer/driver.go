package transfer

import (
	"context"
	"fmt"
	"time"

	"gridsync/pkg/logger"
)

// Options configures a driver run.
type Options struct {
	Interval          time.Duration
	InactivityTimeout time.Duration
	VerifyChecksum    bool
	// Retries is the number of error events to tolerate before cancelling
	// the task. -1 tolerates errors indefinitely (the task still fails
	// after a period of no activity, via the inactivity deadline).
	Retries int
}

// Result is the synchronous summary of a monitored transfer.
type Result struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Error   string `json:"error"`

	// Status is the terminal task status, for callers that want more than
	// the extracted summary.
	Status *TaskStatus `json:"-"`
}

// Run submits a transfer and monitors it to completion, tolerating up to
// opts.Retries error events before cancelling. The service makes no
// distinction between hard errors ("permission denied") and soft ones
// ("endpoint too busy"), so a non-zero retry budget is the norm for large
// transfers. Fatal submission errors are returned as errors; mid-transfer
// errors only fail the run once the budget is exhausted, reported through the
// Result rather than an error.
func Run(ctx context.Context, client Client, sourceEP, destEP string, entries []PathEntry, opts Options) (*Result, error) {
	session := NewSession(client, sourceEP, destEP, SessionOptions{
		Interval:          opts.Interval,
		InactivityTimeout: opts.InactivityTimeout,
		VerifyChecksum:    opts.VerifyChecksum,
	})

	taskID, err := session.Submit(ctx, entries)
	if err != nil {
		return nil, err
	}

	log := logger.NewDefault()
	monitor := session.Monitor()
	continues := 0
	decision := Continue

	var last *MonitorEvent
	for {
		event, err := monitor.Next(ctx, decision)
		if err != nil {
			return nil, err
		}
		last = event
		if event.Finished {
			break
		}

		log.Warn("transfer error event", map[string]any{
			"task_id":     taskID,
			"code":        event.Event.Code,
			"description": event.Event.Description,
			"time":        event.Event.Time,
			"continues":   continues,
		})

		if opts.Retries == -1 || continues < opts.Retries {
			decision = Continue
			continues++
		} else {
			decision = Cancel
		}
	}

	result := &Result{
		Success: last.Success,
		TaskID:  taskID,
		Error:   "No error",
		Status:  last.Status,
	}
	if !last.Success {
		code, description := "Error", "Unknown"
		if last.Status != nil && last.Status.FatalError != nil {
			if last.Status.FatalError.Code != "" {
				code = last.Status.FatalError.Code
			}
			if last.Status.FatalError.Description != "" {
				description = last.Status.FatalError.Description
			}
		}
		result.Error = fmt.Sprintf("%s: %s", code, description)
	}
	return result, nil
}
