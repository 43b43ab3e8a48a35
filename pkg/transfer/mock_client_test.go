package transfer

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// mockClient is a testify mock of the Client interface.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) ListDirectory(ctx context.Context, endpoint, path string) ([]Entry, error) {
	args := m.Called(ctx, endpoint, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Entry), args.Error(1)
}

func (m *mockClient) Submit(ctx context.Context, manifest *Manifest) (*SubmitResponse, error) {
	args := m.Called(ctx, manifest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SubmitResponse), args.Error(1)
}

func (m *mockClient) WaitUntilInactive(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (bool, error) {
	args := m.Called(ctx, taskID, timeout, pollInterval)
	return args.Bool(0), args.Error(1)
}

func (m *mockClient) ListEvents(ctx context.Context, taskID string) ([]Event, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Event), args.Error(1)
}

func (m *mockClient) UpdateDeadline(ctx context.Context, taskID string, deadline time.Time) error {
	args := m.Called(ctx, taskID, deadline)
	return args.Error(0)
}

func (m *mockClient) Cancel(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *mockClient) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TaskStatus), args.Error(1)
}
