package main

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTimersAdd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		fired []*SOp
	)
	ts := NewTimers(func(ctx context.Context, op *SOp) error {
		mu.Lock()
		fired = append(fired, op)
		mu.Unlock()
		return nil
	})

	op := &SOp{GetCrewOp: &GetCrewOp{}}
	if err := ts.Add(ctx, "t1", op, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(ctx, "t1", op, 10*time.Millisecond); err != Exists {
		t.Fatalf("expected Exists, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	n := len(fired)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("fired %d times", n)
	}
}

func TestTimersRem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		fired int
	)
	ts := NewTimers(func(ctx context.Context, op *SOp) error {
		mu.Lock()
		fired++
		mu.Unlock()
		return nil
	})

	op := &SOp{GetCrewOp: &GetCrewOp{}}
	if err := ts.Add(ctx, "t1", op, 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if err := ts.Rem(ctx, "t1"); err != NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	n := fired
	mu.Unlock()
	if n != 0 {
		t.Fatalf("fired %d times after Rem", n)
	}
}

func TestTimersCron(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ts := NewTimers(func(ctx context.Context, op *SOp) error {
		return nil
	})

	// Every minute: won't fire during this test, but it should
	// parse and register.
	op := &SOp{GetCrewOp: &GetCrewOp{}}
	if err := ts.AddCron(ctx, "c1", op, "* * * * *"); err != nil {
		t.Fatal(err)
	}

	ts.Lock()
	te, have := ts.timers["c1"]
	ts.Unlock()
	if !have {
		t.Fatal("cron timer not registered")
	}
	if te.Cron == "" || !te.At.After(time.Now().Add(-time.Second)) {
		t.Fatalf("bad entry: %#v", te)
	}

	if err := ts.AddCron(ctx, "c2", op, "not a cron expression"); err == nil {
		t.Fatal("expected a parse error")
	}

	if err := ts.Rem(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
}
