package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegisterRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(quietLogger())
	err := s.Register("bad", "every now and then", func(context.Context) error { return nil }, false)
	if err == nil {
		t.Fatalf("expected invalid cron expression to be rejected")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	s := NewScheduler(quietLogger())
	noop := func(context.Context) error { return nil }
	if err := s.Register("scan", "0 * * * *", noop, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Register("scan", "@hourly", noop, false); err == nil {
		t.Fatalf("expected duplicate job name to be rejected")
	}
}

func TestStartRunsEagerJobs(t *testing.T) {
	s := NewScheduler(quietLogger())
	ran := make(chan struct{}, 1)
	var lazyRuns atomic.Int32

	err := s.Register("eager", "@every 1h", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = s.Register("lazy", "@every 1h", func(context.Context) error {
		lazyRuns.Add(1)
		return nil
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("eager job did not run on start")
	}
	if lazyRuns.Load() != 0 {
		t.Fatalf("non-eager job must wait for its schedule")
	}
}

func TestRunNowSkipsWhileRunning(t *testing.T) {
	s := NewScheduler(quietLogger())
	started := make(chan struct{})
	release := make(chan struct{})

	err := s.Register("slow", "@hourly", func(context.Context) error {
		close(started)
		<-release
		return nil
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("expected ErrJobRunning for overlapping run, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
}

func TestRunNowRecoversPanics(t *testing.T) {
	s := NewScheduler(quietLogger())
	err := s.Register("explode", "@daily", func(context.Context) error { panic("kaboom") }, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.RunNow(context.Background(), "explode"); err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
	// the overlap guard must be released after a panic
	if err := s.RunNow(context.Background(), "explode"); errors.Is(err, ErrJobRunning) {
		t.Fatalf("job stayed locked after panic")
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := NewScheduler(quietLogger())
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	s := NewScheduler(quietLogger())
	started := make(chan struct{})
	var finished atomic.Bool

	err := s.Register("eager", "@every 1h", func(context.Context) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Start()
	<-started
	s.Stop()

	if !finished.Load() {
		t.Fatalf("Stop returned before the running job finished")
	}
	// stopping twice is a no-op
	s.Stop()
}
