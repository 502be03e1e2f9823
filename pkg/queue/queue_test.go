package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsInOrder(t *testing.T) {
	q := New(0, nil)
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue("task", func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			n := len(order)
			mu.Unlock()
			if n == 5 {
				close(done)
			}
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not finish")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFailureDoesNotStopQueue(t *testing.T) {
	q := New(0, nil)
	ran := make(chan string, 3)

	q.Enqueue("fails", func(context.Context) error {
		ran <- "fails"
		return errors.New("boom")
	})
	q.Enqueue("panics", func(context.Context) error {
		ran <- "panics"
		panic("boom")
	})
	q.Enqueue("ok", func(context.Context) error {
		ran <- "ok"
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case name := <-ran:
			got = append(got, name)
		case <-time.After(2 * time.Second):
			t.Fatal("queue stalled")
		}
	}
	assert.Equal(t, []string{"fails", "panics", "ok"}, got)
}

func TestEnqueueNeverBlocks(t *testing.T) {
	q := New(0, nil) // no runner
	for i := 0; i < 1000; i++ {
		id := q.Enqueue("task", func(context.Context) error { return nil })
		require.NotEmpty(t, id)
	}
	assert.Equal(t, 1000, q.Len())
}

func TestRunStopsOnCancel(t *testing.T) {
	q := New(0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
