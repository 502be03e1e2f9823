// Package queue provides a minimal in-process background task runner used to
// decouple request handling from slow side-channel work such as email sends.
//
// Tasks run strictly in enqueue order, one at a time. A failing or panicking
// task is logged and swallowed; it never crashes the process or blocks the
// tasks behind it. The worker pauses for a fixed delay between tasks.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

type item struct {
	id   string
	name string
	task Task
}

// Queue is a single-worker sequential task runner. Enqueue never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []item
	wake   chan struct{}
	delay  time.Duration
	logger *zap.Logger
}

// New creates a queue. delay is the pause between consecutive tasks.
func New(delay time.Duration, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		wake:   make(chan struct{}, 1),
		delay:  delay,
		logger: logger,
	}
}

// Enqueue appends a task. Returns the task id for log correlation.
func (q *Queue) Enqueue(name string, t Task) string {
	id := uuid.New().String()
	q.mu.Lock()
	q.items = append(q.items, item{id: id, name: name, task: t})
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	q.logger.Debug("task enqueued", zap.String("task_id", id), zap.String("task", name), zap.Int("pending", n))
	return id
}

// Len returns the number of queued (not yet started) tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run processes tasks until ctx is cancelled. Call in a goroutine.
func (q *Queue) Run(ctx context.Context) {
	for {
		it, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		q.runOne(ctx, it)

		if q.delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.delay):
			}
		}
	}
}

func (q *Queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

func (q *Queue) runOne(ctx context.Context, it item) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked",
				zap.String("task_id", it.id),
				zap.String("task", it.name),
				zap.Error(fmt.Errorf("%v", r)))
		}
	}()

	start := time.Now()
	if err := it.task(ctx); err != nil {
		q.logger.Error("task failed",
			zap.String("task_id", it.id),
			zap.String("task", it.name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return
	}
	q.logger.Debug("task done",
		zap.String("task_id", it.id),
		zap.String("task", it.name),
		zap.Duration("took", time.Since(start)))
}
