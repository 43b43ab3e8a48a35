package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func runOptions(retries int) Options {
	return Options{
		Interval:          testInterval,
		InactivityTimeout: time.Hour,
		Retries:           retries,
	}
}

func expectSingleFileSubmission(client *mockClient) {
	expectFile(client, testSourceEP, "/src/a.dat")
	expectMissing(client, testDestEP, "/dst/a.dat")
	client.On("Submit", mock.Anything, mock.Anything).
		Return(&SubmitResponse{Code: SubmissionAccepted, TaskID: testTaskID}, nil).Once()
}

func singlePath() []PathEntry {
	return []PathEntry{{Source: "/src/a.dat", Destination: "/dst/a.dat"}}
}

func errorEvent(n int) Event {
	return Event{
		Code:        "ENDPOINT_BUSY",
		IsError:     true,
		Time:        fmt.Sprintf("2026-08-26 10:00:%02d", n),
		Description: fmt.Sprintf("fault %d", n),
	}
}

func TestRunCleanTransfer(t *testing.T) {
	client := &mockClient{}
	expectSingleFileSubmission(client)
	expectWait(client, true)
	expectFinalStatus(client, &TaskStatus{TaskID: testTaskID, Status: StatusSucceeded})

	result, err := Run(context.Background(), client, testSourceEP, testDestEP, singlePath(), runOptions(10))

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, testTaskID, result.TaskID)
	assert.Equal(t, "No error", result.Error)
	client.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestRunZeroRetriesCancelsOnFirstError(t *testing.T) {
	client := &mockClient{}
	expectSingleFileSubmission(client)
	expectWait(client, false)
	expectEvents(client, []Event{errorEvent(1)})

	client.On("Cancel", mock.Anything, testTaskID).Return(nil).Once()
	client.On("WaitUntilInactive", mock.Anything, testTaskID, time.Second, time.Second).
		Return(true, nil).Once()

	expectWait(client, true)
	expectFinalStatus(client, &TaskStatus{
		TaskID:     testTaskID,
		Status:     StatusFailed,
		FatalError: &FatalError{Code: "CANCELED", Description: "canceled by user"},
	})

	result, err := Run(context.Background(), client, testSourceEP, testDestEP, singlePath(), runOptions(0))

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "CANCELED: canceled by user", result.Error)
	client.AssertExpectations(t)
}

func TestRunRetryBudgetExhaustion(t *testing.T) {
	client := &mockClient{}
	expectSingleFileSubmission(client)
	// Three errors with a budget of two: the first two are tolerated, the
	// third triggers cancellation.
	expectWait(client, false)
	expectEvents(client, []Event{errorEvent(1), errorEvent(2), errorEvent(3)})

	client.On("Cancel", mock.Anything, testTaskID).Return(nil).Once()
	client.On("WaitUntilInactive", mock.Anything, testTaskID, time.Second, time.Second).
		Return(true, nil).Once()

	expectWait(client, true)
	expectFinalStatus(client, &TaskStatus{TaskID: testTaskID, Status: StatusFailed})

	result, err := Run(context.Background(), client, testSourceEP, testDestEP, singlePath(), runOptions(2))

	assert.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Error: Unknown", result.Error)
	client.AssertExpectations(t)
}

func TestRunUnlimitedRetriesNeverCancels(t *testing.T) {
	client := &mockClient{}
	expectSingleFileSubmission(client)
	expectWait(client, false)
	expectEvents(client, []Event{errorEvent(1), errorEvent(2)})
	expectWait(client, false)
	expectEvents(client, []Event{errorEvent(3), errorEvent(4)})
	expectWait(client, true)
	expectFinalStatus(client, &TaskStatus{TaskID: testTaskID, Status: StatusSucceeded})

	result, err := Run(context.Background(), client, testSourceEP, testDestEP, singlePath(), runOptions(-1))

	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "No error", result.Error)
	client.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestRunSubmissionErrorIsFatal(t *testing.T) {
	client := &mockClient{}
	expectDir(client, testSourceEP, "/src/reports")
	expectFile(client, testDestEP, "/dst/report.dat")

	_, err := Run(context.Background(), client, testSourceEP, testDestEP,
		[]PathEntry{{Source: "/src/reports", Destination: "/dst/report.dat"}}, runOptions(10))

	assert.ErrorContains(t, err, "cannot transfer a directory into a file")
}
