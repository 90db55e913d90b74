package interview

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestStoreAddGet(t *testing.T) {
	st := NewStore(4, time.Minute, zap.NewNop())

	sess := &Session{ID: "s1", Mode: ModeExperience, CreatedAt: time.Now()}
	st.Add(sess)

	got, ok := st.Get("s1")
	if !ok {
		t.Fatalf("expected session to be found")
	}
	if got != sess {
		t.Fatalf("expected the same session instance back")
	}

	if _, ok := st.Get("unknown"); ok {
		t.Fatalf("unknown id must miss")
	}
}

func TestStoreCapacityEviction(t *testing.T) {
	st := NewStore(2, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		st.Add(&Session{ID: fmt.Sprintf("s%d", i), CreatedAt: time.Now()})
	}

	if st.Len() != 2 {
		t.Fatalf("expected capacity bound of 2, got %d", st.Len())
	}
	if _, ok := st.Get("s0"); ok {
		t.Fatalf("oldest session must have been evicted")
	}
	if _, ok := st.Get("s2"); !ok {
		t.Fatalf("newest session must still be live")
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	st := NewStore(4, 20*time.Millisecond, zap.NewNop())

	st.Add(&Session{ID: "short-lived", CreatedAt: time.Now()})

	if _, ok := st.Get("short-lived"); !ok {
		t.Fatalf("session must be live right after add")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := st.Get("short-lived"); ok {
		t.Fatalf("session must expire after the ttl")
	}
}

// Eviction fires from the LRU while submissions mutate session progress
// under the session lock; the callback must not read mutable state.
func TestStoreEvictionDuringProgressMutation(t *testing.T) {
	st := NewStore(1, time.Minute, zap.NewNop())

	sess := &Session{ID: "busy", CreatedAt: time.Now()}
	st.Add(sess)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			sess.mu.Lock()
			sess.Progress.Round = RoundResume
			sess.Progress.ResumeIndex = i
			sess.mu.Unlock()
		}
	}()

	// Each add evicts the previous entry, firing onEvict for "busy" first.
	for i := 0; i < 100; i++ {
		st.Add(&Session{ID: fmt.Sprintf("s%d", i), CreatedAt: time.Now()})
	}

	<-done

	if st.Len() != 1 {
		t.Fatalf("expected capacity bound of 1, got %d", st.Len())
	}
}

func TestStoreDefaults(t *testing.T) {
	st := NewStore(0, 0, nil)

	st.Add(&Session{ID: "s1", CreatedAt: time.Now()})
	if _, ok := st.Get("s1"); !ok {
		t.Fatalf("store with defaults must work")
	}
}
