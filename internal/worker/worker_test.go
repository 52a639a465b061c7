package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/control-eventos/apiserver/types"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	messages []types.AttendanceMessage
	errs     []error
	err      error
}

func (s *sliceSource) Consume(ctx context.Context, handle func(context.Context, types.AttendanceMessage) error) error {
	for _, msg := range s.messages {
		s.errs = append(s.errs, handle(ctx, msg))
	}
	return s.err
}

type recordingReconciler struct {
	seen []types.AttendanceMessage
	fail map[int]error
}

func (r *recordingReconciler) EnsureHistory(_ context.Context, msg types.AttendanceMessage) error {
	r.seen = append(r.seen, msg)
	return r.fail[msg.EventID]
}

func TestWorkerHandsMessagesToReconciler(t *testing.T) {
	now := time.Now()
	source := &sliceSource{messages: []types.AttendanceMessage{
		{EventID: 1, UserEmail: "a@example.com", At: now},
		{EventID: 2, UserEmail: "b@example.com", At: now},
	}}
	boom := errors.New("db down")
	reconciler := &recordingReconciler{fail: map[int]error{2: boom}}

	w := New(source, reconciler, nil)
	w.sleep = func(context.Context, time.Duration) error { return nil }

	require.NoError(t, w.Run(context.Background()))
	require.Len(t, reconciler.seen, 2)
	require.NoError(t, source.errs[0])
	require.ErrorIs(t, source.errs[1], boom)
}

func TestWorkerRunTreatsCancellationAsClean(t *testing.T) {
	source := &sliceSource{err: context.Canceled}
	require.NoError(t, New(source, &recordingReconciler{}, nil).Run(context.Background()))

	source = &sliceSource{err: errors.New("connection reset")}
	err := New(source, &recordingReconciler{}, nil).Run(context.Background())
	require.ErrorContains(t, err, "connection reset")
}

func TestWorkerBacksOffOnRepeatedFailures(t *testing.T) {
	msg := types.AttendanceMessage{EventID: 9, UserEmail: "c@example.com"}
	boom := errors.New("db down")
	reconciler := &recordingReconciler{fail: map[int]error{9: boom}}
	source := &sliceSource{messages: []types.AttendanceMessage{msg, msg, msg, msg}}

	var delays []time.Duration
	w := New(source, reconciler, nil)
	w.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, w.Run(context.Background()))
	require.Equal(t, []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
	}, delays)

	delete(reconciler.fail, 9)
	require.NoError(t, w.handle(context.Background(), msg))
	require.Zero(t, w.failures.Load())
}

func TestRetryDelayIsCapped(t *testing.T) {
	require.Equal(t, minRetryDelay, retryDelay(1))
	require.Equal(t, maxRetryDelay, retryDelay(20))
	require.Equal(t, maxRetryDelay, retryDelay(1000))
}

func TestWorkerBackoffStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("db down")
	w := New(&sliceSource{}, &recordingReconciler{fail: map[int]error{1: boom}}, nil)

	err := w.handle(ctx, types.AttendanceMessage{EventID: 1})
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, context.Canceled)
}
