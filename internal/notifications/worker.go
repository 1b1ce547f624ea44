package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
	SendTimeout       time.Duration
	// StuckAfter is how long an item may stay in processing before it is
	// returned to pending.
	StuckAfter time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         100,
		PollInterval:      5 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        5,
		SendTimeout:       30 * time.Second,
		StuckAfter:        10 * time.Minute,
	}
}

// Worker drains the notification queue. Several pollers share the queue;
// FetchPending claims items so no two pollers send the same one.
type Worker struct {
	config     WorkerConfig
	repo       Repository
	dispatcher *Dispatcher
	renderer   *Renderer
	now        func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWorker creates a new notification worker.
func NewWorker(config WorkerConfig, repo Repository, dispatcher *Dispatcher, renderer *Renderer) *Worker {
	return &Worker{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		renderer:   renderer,
		now:        time.Now,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the pollers and, when StuckAfter is set, the loop that
// releases items abandoned in processing.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		workerID := i
		w.spawn(ctx, w.config.PollInterval, func(ctx context.Context) {
			w.processBatch(ctx, workerID)
		})
	}

	if w.config.StuckAfter > 0 {
		w.spawn(ctx, w.config.StuckAfter/2, w.releaseStuck)
	}
}

// Stop waits for in-flight batches to finish.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

// spawn runs fn on every tick until ctx is done or Stop is called.
func (w *Worker) spawn(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

func (w *Worker) releaseStuck(ctx context.Context) {
	released, err := w.repo.RecoverStuckProcessing(ctx, w.config.StuckAfter)
	if err != nil {
		slog.Error("failed to recover stuck notifications", "error", err)
		return
	}
	if released > 0 {
		slog.Warn("recovered stuck notifications", "count", released)
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	items, err := w.repo.FetchPending(ctx, w.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch pending notifications", "worker", workerID, "error", err)
		return
	}
	if len(items) == 0 {
		return
	}

	slog.Debug("processing notifications", "worker", workerID, "count", len(items))
	recordFetched(len(items))

	for _, item := range items {
		w.processItem(ctx, item)
	}
}

// processItem renders, sends and settles one queue item.
func (w *Worker) processItem(ctx context.Context, item *QueueItem) {
	start := w.now()

	subject, body, err := w.renderer.Render(item.ChannelType, item.Payload)
	if err != nil {
		w.settle(ctx, item, NewNonRetryableError(fmt.Errorf("render: %w", err)), 0)
		return
	}

	sendCtx := ctx
	if w.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.config.SendTimeout)
		defer cancel()
	}

	err = w.dispatcher.SendToChannel(sendCtx, item.ChannelType, Notification{
		To:      item.Target,
		Subject: subject,
		Body:    body,
		Key:     item.SLAID,
	})
	w.settle(ctx, item, err, w.now().Sub(start))
}

// settle records the send result on the queue item: sent, rescheduled with
// backoff, or failed for good.
func (w *Worker) settle(ctx context.Context, item *QueueItem, sendErr error, took time.Duration) {
	logger := slog.With(
		"item_id", item.ID,
		"sla_id", item.SLAID,
		"kind", item.NoticeKind,
		"channel_type", item.ChannelType,
	)

	outcome := w.classify(item, sendErr)
	recordSend(item.ChannelType, outcome, took)

	var err error
	switch outcome {
	case outcomeSent:
		logger.Debug("notification sent", "duration", took)
		err = w.repo.MarkAsSent(ctx, item.ID)

	case outcomeRetry:
		next := w.nextAttempt(item.Attempts+1, sendErr)
		logger.Info("notification scheduled for retry",
			"attempt", item.Attempts+1,
			"max_attempts", item.MaxAttempts,
			"next_attempt", next,
			"error", sendErr,
		)
		err = w.repo.MarkForRetry(ctx, item.ID, sendErr, next)

	case outcomeFailed:
		reason := sendErr
		if isRetryable(sendErr) {
			reason = fmt.Errorf("max attempts exceeded: %w", sendErr)
		}
		logger.Warn("notification failed", "attempts", item.Attempts+1, "error", reason)
		err = w.repo.MarkAsFailed(ctx, item.ID, reason)
	}

	if err != nil {
		logger.Error("failed to update queue item", "outcome", outcome, "error", err)
	}
}

func (w *Worker) classify(item *QueueItem, sendErr error) sendOutcome {
	switch {
	case sendErr == nil:
		return outcomeSent
	case !isRetryable(sendErr), item.lastAttempt():
		return outcomeFailed
	default:
		return outcomeRetry
	}
}

// nextAttempt applies the backoff for attempt, or the delay the transport
// asked for when that is longer.
func (w *Worker) nextAttempt(attempt int, sendErr error) time.Time {
	return w.now().Add(max(w.backoff(attempt), retryDelay(sendErr)))
}

// backoff is InitialBackoff * BackoffMultiplier^(attempt-1), capped at
// MaxBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	d := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= w.config.BackoffMultiplier
		if d >= float64(w.config.MaxBackoff) {
			return w.config.MaxBackoff
		}
	}
	return min(time.Duration(d), w.config.MaxBackoff)
}
