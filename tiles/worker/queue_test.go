package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueRunsInOrder(t *testing.T) {
	q := New(10)
	defer q.Close()

	got := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		if err := q.Submit(Task{Work: func(context.Context) { got <- i }}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	for want := 0; want < 3; want++ {
		select {
		case i := <-got:
			if i != want {
				t.Fatalf("task %d ran, want %d", i, want)
			}
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
	}
}

func TestQueueFull(t *testing.T) {
	q := New(1)
	defer q.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(Task{Work: func(context.Context) {
		close(started)
		<-release
	}})
	<-started

	if err := q.Submit(Task{Work: func(context.Context) {}}); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if err := q.Submit(Task{Work: func(context.Context) {}}); !errors.Is(err, ErrFull) {
		t.Errorf("third Submit = %v, want ErrFull", err)
	}
	close(release)
}

func TestQueueSkipsCanceledTasks(t *testing.T) {
	q := New(10)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := make(chan string, 2)
	q.Submit(Task{Ctx: ctx, Work: func(context.Context) { ran <- "canceled" }})
	q.Submit(Task{Work: func(context.Context) { ran <- "live" }})

	select {
	case got := <-ran:
		if got != "live" {
			t.Errorf("%s task ran", got)
		}
	case <-time.After(time.Second):
		t.Fatal("live task did not run")
	}
}

func TestQueueClose(t *testing.T) {
	q := New(10)
	started := make(chan struct{})
	var sawCancel bool
	q.Submit(Task{Work: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel = true
	}})
	<-started

	q.Close()
	if !sawCancel {
		t.Error("Close returned before the running task")
	}
	if err := q.Submit(Task{Work: func(context.Context) {}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close = %v, want ErrClosed", err)
	}
	q.Close()
}
