package shared

import "time"

const (
	TaskTypeTransfer = "transfer"
	TaskTypeNotify   = "transfer_notify"
)

type PathPair struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// TransferPayload is the queue payload of one managed transfer. Zero-valued
// tuning fields fall back to the daemon's configured defaults.
type TransferPayload struct {
	SourceEndpoint           string     `json:"source_endpoint"`
	DestinationEndpoint      string     `json:"destination_endpoint"`
	Paths                    []PathPair `json:"paths"`
	IntervalSeconds          int        `json:"interval_seconds,omitempty"`
	InactivityTimeoutSeconds int        `json:"inactivity_timeout_seconds,omitempty"`
	Retries                  *int       `json:"retries,omitempty"`
}

// TransferOutcome is the stored summary of a finished (or fatally failed)
// transfer job.
type TransferOutcome struct {
	JobID               string    `json:"job_id"`
	TaskID              string    `json:"task_id,omitempty"`
	Success             bool      `json:"success"`
	Error               string    `json:"error,omitempty"`
	SourceEndpoint      string    `json:"source_endpoint"`
	DestinationEndpoint string    `json:"destination_endpoint"`
	Items               int       `json:"items"`
	Duration            string    `json:"duration"`
	CompletedAt         time.Time `json:"completed_at"`
}

type NotifyPayload struct {
	WebhookURL string `json:"webhook_url"`
}
