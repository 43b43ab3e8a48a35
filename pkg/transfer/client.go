package transfer

import (
	"context"
	"fmt"
	"time"
)

// Task status values reported by the transfer service.
const (
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// SubmissionAccepted is the response code of a successfully queued submission.
const SubmissionAccepted = "Accepted"

// EventCodeProgress marks an event indicating the task moved data since the
// last check.
const EventCodeProgress = "PROGRESS"

// Error codes returned by the directory listing operation. The listing API
// doubles as the only existence/type check the service offers, so these codes
// carry type information.
const (
	CodeNotFound         = "ClientError.NotFound"
	CodeNotDirectory     = "ExternalError.DirListingFailed.NotDirectory"
	CodeListingSizeLimit = "ExternalError.DirListingFailed.SizeLimit"
)

// Entry types reported by directory listings.
const (
	EntryTypeDir  = "dir"
	EntryTypeFile = "file"
)

// APIError is a structured error returned by the transfer service.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Entry is one item of a directory listing.
type Entry struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// ManifestItem is one source/destination pair of a transfer manifest.
type ManifestItem struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Recursive   bool   `json:"recursive,omitempty"`
}

// Manifest is the item list submitted to the transfer service as one task,
// together with the initial inactivity deadline. It is built once per
// submission and not modified afterwards.
type Manifest struct {
	SourceEndpoint      string
	DestinationEndpoint string
	Deadline            time.Time
	VerifyChecksum      bool
	Items               []ManifestItem
}

// SubmitResponse is the service's answer to a manifest submission.
type SubmitResponse struct {
	Code    string `json:"code"`
	TaskID  string `json:"task_id"`
	Message string `json:"message,omitempty"`
}

// Event is one entry of a task's event list. Events carry no unique id; the
// timestamp is the only key available for deduplication.
type Event struct {
	Code        string `json:"code"`
	IsError     bool   `json:"is_error"`
	Time        string `json:"time"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

// FatalError is the terminal error recorded on a failed task.
type FatalError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// TaskStatus is the service-side view of a transfer task.
type TaskStatus struct {
	TaskID           string      `json:"task_id"`
	Status           string      `json:"status"`
	NiceStatus       string      `json:"nice_status,omitempty"`
	FilesTransferred int64       `json:"files_transferred"`
	BytesTransferred int64       `json:"bytes_transferred"`
	Faults           int64       `json:"faults"`
	Deadline         string      `json:"deadline,omitempty"`
	FatalError       *FatalError `json:"fatal_error,omitempty"`
}

// Client is the transfer service contract the orchestrator depends on. An
// implementation must be safe for sequential reuse; the orchestrator never
// issues concurrent calls on one client from a single session.
type Client interface {
	// ListDirectory lists a directory on an endpoint. Failures surface as
	// *APIError with one of the Code* constants where the service reported
	// a structured error.
	ListDirectory(ctx context.Context, endpoint, path string) ([]Entry, error)

	// Submit queues a transfer manifest and returns the service response.
	Submit(ctx context.Context, manifest *Manifest) (*SubmitResponse, error)

	// WaitUntilInactive blocks until the task leaves the ACTIVE status or
	// the timeout elapses. It reports whether the task is inactive.
	WaitUntilInactive(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (bool, error)

	// ListEvents returns recent task events, most recent first. The list
	// may repeat events returned by earlier calls.
	ListEvents(ctx context.Context, taskID string) ([]Event, error)

	// UpdateDeadline pushes the task's inactivity deadline forward.
	UpdateDeadline(ctx context.Context, taskID string, deadline time.Time) error

	// Cancel requests cancellation of the task. Cancellation is
	// asynchronous; callers must poll until the task is inactive.
	Cancel(ctx context.Context, taskID string) error

	// GetTask fetches the current status of the task.
	GetTask(ctx context.Context, taskID string) (*TaskStatus, error)
}
