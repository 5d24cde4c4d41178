// Package cleanup removes the stored blobs of deleted programs.
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meditation/internal/pgmq"

	"github.com/rs/zerolog"
)

// Job asks the worker to delete every object under Prefix and the listed
// Keys, which live outside it.
type Job struct {
	ProgramID   string    `json:"program_id"`
	Prefix      string    `json:"prefix"`
	Keys        []string  `json:"keys,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue is the subset of the pgmq client the worker needs.
type Queue interface {
	Send(ctx context.Context, queue string, payload []byte) error
	ReadWithPoll(ctx context.Context, queue string, timeoutSec, maxMessages int) ([]*pgmq.Message, error)
	Delete(ctx context.Context, queue string, msgIDs []int64) error
}

// BlobDeleter removes objects by key prefix or by exact key.
type BlobDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	DeleteKeys(ctx context.Context, keys []string) (int, error)
}

// Enqueue schedules blob cleanup for a deleted program.
func Enqueue(ctx context.Context, q Queue, queue string, job Job) error {
	if job.Prefix == "" {
		return errors.New("cleanup job needs a prefix")
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal cleanup job: %w", err)
	}
	return q.Send(ctx, queue, payload)
}

type Options struct {
	Queue           string
	DeadLetterQueue string
	PollTimeoutSec  int
	PollMaxMsg      int
	MaxRetries      int
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
}

type Worker struct {
	queue  Queue
	store  BlobDeleter
	opts   Options
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewWorker(queue Queue, store BlobDeleter, opts Options, logger zerolog.Logger) *Worker {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.PollMaxMsg < 1 {
		opts.PollMaxMsg = 1
	}
	return &Worker{
		queue:  queue,
		store:  store,
		opts:   opts,
		logger: logger.With().Str("worker", "cleanup").Logger(),
		sleep:  sleepCtx,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("queue", w.opts.Queue).Msg("Starting blob cleanup worker")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down blob cleanup worker")
			return nil
		default:
		}

		msgs, err := w.queue.ReadWithPoll(ctx, w.opts.Queue, w.opts.PollTimeoutSec, w.opts.PollMaxMsg)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading cleanup queue")
			_ = w.sleep(ctx, time.Second)
			continue
		}
		for _, msg := range msgs {
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg *pgmq.Message) {
	log := w.logger.With().Int64("msg_id", msg.ID).Logger()

	var job Job
	if err := json.Unmarshal(msg.Data, &job); err != nil || job.Prefix == "" {
		log.Error().Err(err).Msg("Invalid cleanup payload; deleting message")
		w.ack(ctx, log, msg.ID)
		return
	}
	log = log.With().Str("program_id", job.ProgramID).Str("prefix", job.Prefix).Logger()

	backoff := w.opts.BackoffInitial
	var lastErr error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		n, err := w.deleteBlobs(ctx, job)
		if err == nil {
			log.Info().Int("objects", n).Msg("Deleted program blobs")
			w.ack(ctx, log, msg.ID)
			return
		}
		lastErr = err
		log.Error().Err(err).Int("attempt", attempt).Msg("Blob cleanup failed, retrying")
		if attempt == w.opts.MaxRetries {
			break
		}
		if err := w.sleep(ctx, backoff); err != nil {
			// Leave the message; it becomes visible again after the timeout.
			return
		}
		backoff *= 2
		if w.opts.BackoffMax > 0 && backoff > w.opts.BackoffMax {
			backoff = w.opts.BackoffMax
		}
	}

	if w.opts.DeadLetterQueue != "" {
		if err := w.queue.Send(ctx, w.opts.DeadLetterQueue, msg.Data); err != nil {
			log.Error().Err(err).Str("dlq", w.opts.DeadLetterQueue).Msg("Failed to send message to dead-letter queue")
			return
		}
	}
	w.ack(ctx, log, msg.ID)
	log.Warn().Int("attempts", w.opts.MaxRetries).Err(lastErr).Msg("Exhausted all cleanup retries; moving job to DLQ")
}

func (w *Worker) deleteBlobs(ctx context.Context, job Job) (int, error) {
	n, err := w.store.DeletePrefix(ctx, job.Prefix)
	if err != nil {
		return n, err
	}
	if len(job.Keys) == 0 {
		return n, nil
	}
	m, err := w.store.DeleteKeys(ctx, job.Keys)
	return n + m, err
}

func (w *Worker) ack(ctx context.Context, log zerolog.Logger, id int64) {
	if err := w.queue.Delete(ctx, w.opts.Queue, []int64{id}); err != nil {
		log.Error().Err(err).Msg("Error deleting cleanup message")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
