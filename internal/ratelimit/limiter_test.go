package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAllowUpToLimit(t *testing.T) {
	l := New(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("s1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("s1") {
		t.Fatal("request past the limit should be rejected")
	}
	// Still rejected until the window rolls over.
	if l.Allow("s1") {
		t.Fatal("subsequent request should also be rejected")
	}
}

func TestWindowRollover(t *testing.T) {
	l := New(2, 30*time.Millisecond)

	if !l.Allow("s1") || !l.Allow("s1") {
		t.Fatal("first two requests should be allowed")
	}
	if l.Allow("s1") {
		t.Fatal("third request should be rejected")
	}

	time.Sleep(40 * time.Millisecond)

	if !l.Allow("s1") {
		t.Fatal("request after rollover should be allowed")
	}
}

func TestSessionsIsolated(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow("s1") {
		t.Fatal("s1 first request should be allowed")
	}
	if l.Allow("s1") {
		t.Fatal("s1 second request should be rejected")
	}
	if !l.Allow("s2") {
		t.Fatal("s2 should have its own budget")
	}
}

func TestForget(t *testing.T) {
	l := New(1, time.Minute)

	l.Allow("s1")
	if l.Allow("s1") {
		t.Fatal("should be at the limit")
	}

	l.Forget("s1")
	if !l.Allow("s1") {
		t.Fatal("forgotten session should start fresh")
	}
}

func TestPruneDeadSessions(t *testing.T) {
	l := New(10, time.Minute)

	l.Allow("live")
	l.Allow("dead-1")
	l.Allow("dead-2")

	removed := l.Prune(func(id string) bool { return id == "live" })
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}

func TestPruneStaleWindows(t *testing.T) {
	l := New(10, 10*time.Millisecond)

	l.Allow("s1")
	time.Sleep(25 * time.Millisecond)

	// Session still live, but the counter is two windows old.
	removed := l.Prune(func(string) bool { return true })
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
}

func TestConcurrentAllow(t *testing.T) {
	const limit = 100
	l := New(limit, time.Minute)

	var wg sync.WaitGroup
	allowed := make(chan bool, limit*2)
	for i := 0; i < limit*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("s1")
		}()
	}
	wg.Wait()
	close(allowed)

	granted := 0
	for ok := range allowed {
		if ok {
			granted++
		}
	}
	if granted != limit {
		t.Fatalf("granted = %d, want exactly %d", granted, limit)
	}
}

func TestManySessions(t *testing.T) {
	l := New(1, time.Minute)

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("s%d", i)
		if !l.Allow(id) {
			t.Fatalf("first request for %s should be allowed", id)
		}
	}
	if l.Len() != 50 {
		t.Fatalf("len = %d, want 50", l.Len())
	}
}
