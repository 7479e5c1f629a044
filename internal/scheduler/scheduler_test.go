package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestEvery_RunsJob(t *testing.T) {
	s := New(time.Second)
	s.Start(context.Background())
	defer s.Stop()

	ran := make(chan struct{}, 1)
	if err := s.Every("poll:a", 20*time.Millisecond, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("job context should carry a deadline")
		}
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRemove(t *testing.T) {
	s := New(0)
	s.Start(context.Background())
	defer s.Stop()

	noop := func(context.Context) {}
	if err := s.Every("poll:a", time.Minute, noop); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if err := s.Every("poll:b", time.Minute, noop); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	if err := s.Remove("poll:a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() after remove = %d, want 1", s.Len())
	}
	if err := s.Remove("poll:a"); err == nil {
		t.Error("removing an unknown tag should fail")
	}
}

func TestEvery_DuplicateTag(t *testing.T) {
	s := New(0)
	noop := func(context.Context) {}

	if err := s.Every("poll:a", time.Minute, noop); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if err := s.Every("poll:a", time.Minute, noop); err == nil {
		t.Error("duplicate tag should be rejected")
	}
}

func TestEvery_InvalidInterval(t *testing.T) {
	if err := New(0).Every("x", 0, func(context.Context) {}); err == nil {
		t.Error("zero interval should be rejected")
	}
}
