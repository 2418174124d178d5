// SPDX-License-Identifier: MIT

package jenkins

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testOptions keeps polling fast enough for unit tests.
func testOptions() Options {
	return Options{
		QueuePollInterval: 5 * time.Millisecond,
		QueuePollCeiling:  250 * time.Millisecond,
		BuildPollInterval: 5 * time.Millisecond,
		BuildPollCeiling:  250 * time.Millisecond,
		HTTPTimeout:       2 * time.Second,
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	queued  int
	started []int
}

func (n *recordingNotifier) Queued(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queued++
}

func (n *recordingNotifier) Started(_ context.Context, number int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, number)
}

func TestTriggerHappyPath(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetQueuePolls(3)

	c := New(mock.URL, "bot", "token123", testOptions())
	notify := &recordingNotifier{}

	handle, err := c.Trigger(context.Background(), "Service-Kibana", "restart", notify)
	require.NoError(t, err)
	assert.Equal(t, "Service-Kibana", handle.Job)
	assert.Equal(t, "restart", handle.Action)
	assert.Equal(t, 42, handle.Number)

	assert.Equal(t, "restart", mock.LastAction())
	assert.Contains(t, mock.LastAuth(), "Basic ")

	// Queued is notified at most once per phase no matter how many polls it took.
	assert.Equal(t, 1, notify.queued)
	assert.Equal(t, []int{42}, notify.started)
}

func TestTriggerImmediateDequeueSkipsQueueNotice(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()

	c := New(mock.URL, "", "", testOptions())
	notify := &recordingNotifier{}

	_, err := c.Trigger(context.Background(), "Service-Kibana", "start", notify)
	require.NoError(t, err)
	assert.Equal(t, 0, notify.queued)
	assert.Len(t, notify.started, 1)
}

func TestTriggerQueueTimeoutCancelsExactlyOnce(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetNeverDequeue(true)

	c := New(mock.URL, "bot", "token123", testOptions())

	_, err := c.Trigger(context.Background(), "Service-Kibana", "stop", &recordingNotifier{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQueueTimeout))
	assert.Equal(t, 1, mock.CancelCalls())
}

func TestTriggerServerErrorPropagates(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetTriggerStatus(503)

	c := New(mock.URL, "", "", testOptions())

	_, err := c.Trigger(context.Background(), "Service-Kibana", "start", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServerError))
	assert.Equal(t, 0, mock.CancelCalls())
}

func TestTriggerMissingQueueLocation(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetTriggerStatus(200) // 200 without a Location header

	c := New(mock.URL, "", "", testOptions())

	_, err := c.Trigger(context.Background(), "Service-Kibana", "start", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBadResponse))
}

func TestTriggerRespectsContextCancel(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetNeverDequeue(true)

	c := New(mock.URL, "", "", testOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Trigger(ctx, "Service-Kibana", "start", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestErrorUnwrapKeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := error(&Error{Sentinel: ErrRunnerUnavailable, Operation: "trigger", Err: cause})

	assert.True(t, errors.Is(err, ErrRunnerUnavailable))
	assert.True(t, errors.Is(err, cause))

	var wrapped *Error
	require.True(t, errors.As(err, &wrapped))
	assert.Equal(t, "trigger", wrapped.Operation)
}

func TestIsBuildDone(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetBuildingPolls(42, 2)

	c := New(mock.URL, "", "", testOptions())
	ctx := context.Background()

	assert.False(t, c.IsBuildDone(ctx, "Service-Kibana", 42))
	assert.False(t, c.IsBuildDone(ctx, "Service-Kibana", 42))
	assert.True(t, c.IsBuildDone(ctx, "Service-Kibana", 42))
}

func TestIsBuildDoneDegradesToFalseOnError(t *testing.T) {
	mock := NewMockServer()
	c := New(mock.URL, "", "", testOptions())
	mock.Close() // connection refused from here on

	assert.False(t, c.IsBuildDone(context.Background(), "Service-Kibana", 42))
}

func TestWaitForCompletion(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetBuildingPolls(42, 3)

	c := New(mock.URL, "", "", testOptions())
	require.NoError(t, c.WaitForCompletion(context.Background(), "Service-Kibana", 42))
}

func TestWaitForCompletionCeilingIsNotAnError(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetBuildingPolls(42, 1000) // never finishes within the ceiling

	c := New(mock.URL, "", "", testOptions())
	require.NoError(t, c.WaitForCompletion(context.Background(), "Service-Kibana", 42))
}

func TestWaitForCompletionTransportErrorPropagates(t *testing.T) {
	mock := NewMockServer()
	c := New(mock.URL, "", "", testOptions())
	mock.Close()

	err := c.WaitForCompletion(context.Background(), "Service-Kibana", 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunnerUnavailable))
}

func TestConsoleLog(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetConsoleText(42, "Started by user admin\nstopped\n")

	c := New(mock.URL, "", "", testOptions())
	raw, err := c.ConsoleLog(context.Background(), "Service-Kibana", 42)
	require.NoError(t, err)
	assert.Contains(t, raw, "stopped")
}

func TestCheckStatus(t *testing.T) {
	mock := NewMockServer()
	defer mock.Close()
	mock.SetConsoleText(42, "Started by user bot\n[Pipeline] sh\nrunning\nFinished: SUCCESS\n")

	c := New(mock.URL, "", "", testOptions())
	status, err := c.CheckStatus(context.Background(), "Service-Kibana", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status)
	assert.Equal(t, "status", mock.LastAction())
}
