package transfer

import (
	"context"
	"fmt"
	"path"
	"time"

	"gridsync/pkg/logger"
)

const (
	// DefaultInterval is the default poll period of the monitoring loop.
	DefaultInterval = time.Minute
	// DefaultInactivityTimeout is how long a task may go without progress
	// before the service cancels it.
	DefaultInactivityTimeout = 24 * time.Hour
)

type SessionOptions struct {
	// Interval is the poll period of the monitoring loop. Clamped to a
	// minimum of one second.
	Interval time.Duration
	// InactivityTimeout is the progress-based deadline window. The task
	// deadline is initialized to now + InactivityTimeout and pushed
	// forward on every observed progress event.
	InactivityTimeout time.Duration
	// VerifyChecksum asks the service to verify checksums after transfer.
	VerifyChecksum bool
}

// Session drives one transfer task: it builds a manifest from path pairs,
// submits it, and produces a Monitor for the resulting task. One Session
// corresponds to exactly one remote task and must not be shared concurrently.
type Session struct {
	client   Client
	sourceEP string
	destEP   string
	opts     SessionOptions
	taskID   string
	logger   *logger.Logger
}

func NewSession(client Client, sourceEP, destEP string, opts SessionOptions) *Session {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	} else if opts.Interval < time.Second {
		opts.Interval = time.Second
	}
	if opts.InactivityTimeout <= 0 {
		opts.InactivityTimeout = DefaultInactivityTimeout
	}

	return &Session{
		client:   client,
		sourceEP: sourceEP,
		destEP:   destEP,
		opts:     opts,
		logger:   logger.NewDefault(),
	}
}

// Submit classifies every path pair, builds the transfer manifest and submits
// it. Sources must exist; destinations may be missing. Returns the id of the
// accepted task. Any unusable classification, malformed pair, or non-accepted
// submission response fails the whole submission.
func (s *Session) Submit(ctx context.Context, entries []PathEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no paths to transfer")
	}
	if s.taskID != "" {
		return "", fmt.Errorf("session already submitted task %s", s.taskID)
	}

	manifest := &Manifest{
		SourceEndpoint:      s.sourceEP,
		DestinationEndpoint: s.destEP,
		Deadline:            time.Now().UTC().Add(s.opts.InactivityTimeout),
		VerifyChecksum:      s.opts.VerifyChecksum,
	}

	for _, entry := range entries {
		src := PosixifyPath(entry.Source)
		dst := PosixifyPath(entry.Destination)

		srcClass, err := Classify(ctx, s.client, s.sourceEP, src, false)
		if err != nil {
			return "", fmt.Errorf("classify source %q: %w", src, err)
		}
		dstClass, err := Classify(ctx, s.client, s.destEP, dst, true)
		if err != nil {
			return "", fmt.Errorf("classify destination %q: %w", dst, err)
		}

		dstExists := dstClass.Exists == ExistenceConfirmed
		switch {
		case srcClass.IsDir && (!dstExists || dstClass.IsDir):
			manifest.Items = append(manifest.Items, ManifestItem{
				Source:      src,
				Destination: dst,
				Recursive:   true,
			})
		case !srcClass.IsDir && (!dstExists || !dstClass.IsDir):
			manifest.Items = append(manifest.Items, ManifestItem{
				Source:      src,
				Destination: dst,
			})
		case !srcClass.IsDir && dstExists && dstClass.IsDir:
			// Transfer the file into the existing directory.
			manifest.Items = append(manifest.Items, ManifestItem{
				Source:      src,
				Destination: path.Join(dst, path.Base(src)),
			})
		default:
			return "", fmt.Errorf("cannot transfer a directory into a file: %q -> %q", src, dst)
		}
	}

	res, err := s.client.Submit(ctx, manifest)
	if err != nil {
		return "", fmt.Errorf("submit transfer: %w", err)
	}
	if res.Code != SubmissionAccepted {
		return "", fmt.Errorf("failed to transfer files: transfer %s", res.Code)
	}

	s.taskID = res.TaskID
	s.logger.Info("transfer submitted", map[string]any{
		"task_id":     res.TaskID,
		"source":      s.sourceEP,
		"destination": s.destEP,
		"items":       len(manifest.Items),
	})
	return res.TaskID, nil
}

// TaskID returns the id of the submitted task, or "" before submission.
func (s *Session) TaskID() string {
	return s.taskID
}

// Monitor returns a monitor for the submitted task. Must be called after a
// successful Submit.
func (s *Session) Monitor() *Monitor {
	return &Monitor{
		client:     s.client,
		taskID:     s.taskID,
		interval:   s.opts.Interval,
		inactivity: s.opts.InactivityTimeout,
		seen:       make(map[string]struct{}),
		logger:     s.logger,
	}
}
