package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gridsync/pkg/config"
	"gridsync/pkg/transfer"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(&config.ServiceConfig{
		BaseURL:               server.URL,
		Token:                 "secret-token",
		RequestTimeoutSeconds: 5,
	})
	assert.NoError(t, err)
	return client, server
}

func TestListDirectory(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/operation/endpoint/ep-1/ls", r.URL.Path)
		assert.Equal(t, "/data/reports", r.URL.Query().Get("path"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"DATA": []transfer.Entry{
				{Name: "a.dat", Type: "file", Size: 42},
				{Name: "sub", Type: "dir"},
			},
		})
	}))

	entries, err := client.ListDirectory(context.Background(), "ep-1", "/data/reports")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "a.dat", entries[0].Name)
	assert.Equal(t, transfer.EntryTypeDir, entries[1].Type)
}

func TestListDirectoryErrorMapping(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    transfer.CodeNotFound,
			"message": "no such path",
		})
	}))

	_, err := client.ListDirectory(context.Background(), "ep-1", "/gone")

	var apiErr *transfer.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, transfer.CodeNotFound, apiErr.Code)
	assert.Equal(t, "no such path", apiErr.Message)
}

func TestListDirectoryUnstructuredError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusBadGateway)
	}))

	_, err := client.ListDirectory(context.Background(), "ep-1", "/data")

	var apiErr *transfer.APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "HTTP502", apiErr.Code)
}

func TestSubmit(t *testing.T) {
	var received submitRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transfer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_ = json.NewEncoder(w).Encode(transfer.SubmitResponse{
			Code:   transfer.SubmissionAccepted,
			TaskID: "task-9",
		})
	}))

	deadline := time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
	res, err := client.Submit(context.Background(), &transfer.Manifest{
		SourceEndpoint:      "src-ep",
		DestinationEndpoint: "dst-ep",
		Deadline:            deadline,
		VerifyChecksum:      true,
		Items: []transfer.ManifestItem{
			{Source: "/a", Destination: "/b", Recursive: true},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, "task-9", res.TaskID)
	assert.Equal(t, "src-ep", received.SourceEndpoint)
	assert.Equal(t, "2026-08-26T12:00:00Z", received.Deadline)
	assert.True(t, received.Items[0].Recursive)
}

func TestWaitUntilInactiveReturnsImmediately(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task/task-9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(transfer.TaskStatus{TaskID: "task-9", Status: transfer.StatusSucceeded})
	}))

	inactive, err := client.WaitUntilInactive(context.Background(), "task-9", time.Minute, time.Minute)
	assert.NoError(t, err)
	assert.True(t, inactive)
}

func TestWaitUntilInactiveTimesOutWhileActive(t *testing.T) {
	polls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls++
		_ = json.NewEncoder(w).Encode(transfer.TaskStatus{TaskID: "task-9", Status: transfer.StatusActive})
	}))

	inactive, err := client.WaitUntilInactive(context.Background(), "task-9", 30*time.Millisecond, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.False(t, inactive)
	assert.GreaterOrEqual(t, polls, 2)
}

func TestCancelAndUpdateDeadlineRoutes(t *testing.T) {
	var calls []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.Cancel(context.Background(), "task-9"))
	assert.NoError(t, client.UpdateDeadline(context.Background(), "task-9", time.Now()))
	assert.Equal(t, []string{"POST /task/task-9/cancel", "PUT /task/task-9"}, calls)
}

func TestListEvents(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task/task-9/event_list", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"DATA": []transfer.Event{
				{Code: "PROGRESS", Time: "2026-08-26 10:00:01"},
				{Code: "ENDPOINT_BUSY", IsError: true, Time: "2026-08-26 10:00:00", Description: "busy"},
			},
		})
	}))

	events, err := client.ListEvents(context.Background(), "task-9")
	assert.NoError(t, err)
	assert.Len(t, events, 2)
	assert.True(t, events[1].IsError)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(&config.ServiceConfig{BaseURL: "ftp://example.com", RequestTimeoutSeconds: 5})
	assert.ErrorContains(t, err, "unsupported base URL scheme")
}
