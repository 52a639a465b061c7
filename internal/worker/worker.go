package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/control-eventos/apiserver/internal/logger"
	"github.com/control-eventos/apiserver/types"
	"go.uber.org/multierr"
)

// Source delivers attendance messages to a handler until ctx is done.
type Source interface {
	Consume(ctx context.Context, handle func(context.Context, types.AttendanceMessage) error) error
}

// Reconciler backfills the history row of a check-in.
type Reconciler interface {
	EnsureHistory(ctx context.Context, msg types.AttendanceMessage) error
}

const (
	minRetryDelay = 500 * time.Millisecond
	maxRetryDelay = 30 * time.Second
)

// Worker reconciles attendance history from published check-ins.
type Worker struct {
	source     Source
	reconciler Reconciler
	log        *logger.Logger

	failures atomic.Int64
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(source Source, reconciler Reconciler, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{source: source, reconciler: reconciler, log: log, sleep: sleepContext}
}

// Run consumes until ctx is cancelled. Handler errors are returned to the
// broker so the message is redelivered, after a delay that doubles with
// every consecutive failure.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info(ctx, "attendance worker started")
	err := w.source.Consume(ctx, w.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume attendance: %w", err)
	}
	w.log.Info(ctx, "attendance worker stopped")
	return nil
}

func (w *Worker) handle(ctx context.Context, msg types.AttendanceMessage) error {
	ctx = w.log.WithField(ctx, "event_id", msg.EventID)
	if err := w.reconciler.EnsureHistory(ctx, msg); err != nil {
		delay := retryDelay(int(w.failures.Add(1)))
		ctx = w.log.WithField(ctx, "retry_in", delay.String())
		w.log.Error(ctx, "attendance reconciliation failed", err)
		if sleepErr := w.sleep(ctx, delay); sleepErr != nil {
			return multierr.Append(err, sleepErr)
		}
		return err
	}
	w.failures.Store(0)
	w.log.Debug(ctx, "attendance reconciled")
	return nil
}

func retryDelay(failures int) time.Duration {
	delay := minRetryDelay
	for i := 1; i < failures && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
