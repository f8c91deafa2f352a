package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type mockPoller struct {
	mu    sync.Mutex
	calls int
	err   error
	ticks chan struct{}
}

func (m *mockPoller) Poll(_ context.Context) (int, error) {
	m.mu.Lock()
	m.calls++
	err := m.err
	m.mu.Unlock()

	if m.ticks != nil {
		select {
		case m.ticks <- struct{}{}:
		default:
		}
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (m *mockPoller) getCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerPollsOnEveryTick(t *testing.T) {
	poller := &mockPoller{ticks: make(chan struct{}, 1)}
	sched := New(poller, newTestLogger())
	sched.SetTickInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-poller.ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not poll", i)
		}
	}
}

func TestSchedulerDoesNotPollBeforeFirstTick(t *testing.T) {
	poller := &mockPoller{}
	sched := New(poller, newTestLogger())
	sched.SetTickInterval(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	sched.Run(ctx)

	if diff := cmp.Diff(0, poller.getCalls()); diff != "" {
		t.Errorf("poll calls mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerKeepsPollingAfterErrors(t *testing.T) {
	poller := &mockPoller{err: errors.New("503"), ticks: make(chan struct{}, 1)}
	sched := New(poller, newTestLogger())
	sched.SetTickInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-poller.ticks:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not poll after an error", i)
		}
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	poller := &mockPoller{}
	sched := New(poller, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.pollOnce(ctx)

	if diff := cmp.Diff(0, poller.getCalls()); diff != "" {
		t.Errorf("expected no poll when context cancelled (-want +got):\n%s", diff)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	sched := New(&mockPoller{}, newTestLogger())
	sched.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

type panickingPoller struct {
	calls chan int
	n     int
}

func (p *panickingPoller) Poll(_ context.Context) (int, error) {
	p.n++
	p.calls <- p.n
	if p.n == 1 {
		panic("connection reset")
	}
	return 0, nil
}

func TestSchedulerKeepsPollingAfterPanic(t *testing.T) {
	poller := &panickingPoller{calls: make(chan int, 4)}
	sched := New(poller, newTestLogger())
	sched.SetTickInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	var got []int
	for len(got) < 2 {
		select {
		case n := <-poller.calls:
			got = append(got, n)
		case <-time.After(time.Second):
			t.Fatalf("poll calls = %v, want a second call after the panic", got)
		}
	}
	if diff := cmp.Diff([]int{1, 2}, got); diff != "" {
		t.Errorf("poll calls mismatch (-want +got):\n%s", diff)
	}
}
