package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueuePushPop(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](1)
	result := make(chan string, 1)
	errCh := make(chan error, 1)

	go func() {
		v, ok, err := q.Pop(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		if !ok {
			errCh <- context.Canceled
			return
		}
		result <- v
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Push(context.Background(), "https://a.test"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Pop() error = %v", err)
	case got := <-result:
		if got != "https://a.test" {
			t.Fatalf("expected https://a.test, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not return value")
	}
}

func TestQueueFIFOWithSentinel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue[int](0)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(ctx, i))
	}
	require.NoError(t, q.PushEnd(ctx))
	require.Equal(t, 4, q.Len())

	for i := 0; i < 3; i++ {
		v, ok, err := q.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	v, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.False(t, ok, "expected sentinel")
	require.Zero(t, v)
}

func TestQueueSentinelDistinctFromZeroValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue[string](0)
	require.NoError(t, q.Push(ctx, ""))
	require.NoError(t, q.PushEnd(ctx))

	v, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok, "empty string is a value, not a sentinel")
	require.Equal(t, "", v)

	_, ok, err = q.Pop(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueueBoundedBlocksUntilRoom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue[int](1)
	require.NoError(t, q.Push(ctx, 1))

	pushed := make(chan error, 1)
	go func() {
		pushed <- q.Push(ctx, 2)
	}()

	select {
	case err := <-pushed:
		t.Fatalf("push into full queue returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	v, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, v)

	select {
	case err := <-pushed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked push was not released")
	}
	require.Equal(t, 1, q.Len())
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	qPop := NewQueue[int](1)
	if _, _, err := qPop.Pop(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qPush := NewQueue[int](1)
	require.NoError(t, qPush.Push(context.Background(), 1))
	if err := qPush.Push(ctx, 2); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
	if err := qPush.PushEnd(ctx); err == nil {
		t.Fatal("expected sentinel enqueue to fail on full queue with canceled context")
	}
}

func TestQueueConcurrentConsumersSeeEverything(t *testing.T) {
	t.Parallel()

	const (
		items     = 200
		consumers = 8
	)
	ctx := context.Background()
	q := NewQueue[int](4)

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok, err := q.Pop(ctx)
				if err != nil {
					t.Errorf("Pop() error = %v", err)
					return
				}
				q.TaskDone()
				if !ok {
					return
				}
				mu.Lock()
				seen[v]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < items; i++ {
		require.NoError(t, q.Push(ctx, i))
	}
	for i := 0; i < consumers; i++ {
		require.NoError(t, q.PushEnd(ctx))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("consumers did not terminate")
	}

	require.Len(t, seen, items)
	for v, n := range seen {
		require.Equalf(t, 1, n, "value %d delivered %d times", v, n)
	}
	require.NoError(t, q.Join(ctx))
}

func TestQueueJoin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	q := NewQueue[int](0)
	require.NoError(t, q.Join(ctx), "empty queue joins immediately")

	require.NoError(t, q.Push(ctx, 1))
	_, _, err := q.Pop(ctx)
	require.NoError(t, err)

	joined := make(chan error, 1)
	go func() {
		joined <- q.Join(ctx)
	}()
	select {
	case err := <-joined:
		t.Fatalf("join returned before TaskDone: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	q.TaskDone()
	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("join did not return after TaskDone")
	}

	require.Panics(t, q.TaskDone)
}
