package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSession_TryBeginIsExclusive(t *testing.T) {
	s := NewSession("s")
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBegin() {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("TryBegin succeeded %d times, want 1", wins.Load())
	}
	s.End()
	if !s.TryBegin() {
		t.Fatal("TryBegin after End must succeed")
	}
}

func TestSession_RememberTrackingID(t *testing.T) {
	s := NewSession("s")
	s.RememberTrackingID("a")
	s.RememberTrackingID("")
	if s.TrackingID() != "a" {
		t.Fatalf("TrackingID = %q", s.TrackingID())
	}
}

func TestSessionRegistry_ReusesAndEvicts(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewSessionRegistry(time.Minute)
	r.Now = func() time.Time { return now }

	a := r.Get("a")
	if r.Get("a") != a {
		t.Fatal("Get must return the same session for an id")
	}
	busy := r.Get("busy")
	busy.TryBegin()

	now = now.Add(2 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1 (generating sessions stay)", n)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d", r.Len())
	}
	if r.Get("a") == a {
		t.Fatal("evicted session must be recreated")
	}
}
