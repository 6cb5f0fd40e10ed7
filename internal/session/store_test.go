package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sheetsql/sheetsql/internal/pipeline"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(cfg Config) (*Store, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewStore(cfg, nil)
	store.now = clock.Now
	return store, clock
}

func TestCreateGetDelete(t *testing.T) {
	store, _ := newTestStore(Config{})
	session := store.Create(pipeline.Upload{Name: "a.csv"})
	if session.ID == "" {
		t.Fatal("Create() returned an empty id")
	}

	got, ok := store.Get(session.ID)
	if !ok || got.Upload().Name != "a.csv" {
		t.Fatalf("Get() = %v, %v", got, ok)
	}

	if !store.Delete(session.ID) {
		t.Fatal("first Delete() = false")
	}
	if store.Delete(session.ID) {
		t.Fatal("second Delete() = true")
	}
	if _, ok := store.Get(session.ID); ok {
		t.Fatal("Get() found a deleted session")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	store, clock := newTestStore(Config{TTL: 10 * time.Minute})
	idle := store.Create(pipeline.Upload{Name: "idle.csv"})
	clock.Advance(8 * time.Minute)
	active := store.Create(pipeline.Upload{Name: "active.csv"})
	clock.Advance(3 * time.Minute)
	_, _ = store.Get(active.ID)

	if n := store.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, ok := store.Get(idle.ID); ok {
		t.Fatal("idle session survived sweep")
	}
	if _, ok := store.Get(active.ID); !ok {
		t.Fatal("active session was swept")
	}
}

func TestCreateEvictsLeastRecentlyUsedWhenFull(t *testing.T) {
	store, clock := newTestStore(Config{MaxSessions: 2})
	first := store.Create(pipeline.Upload{Name: "1"})
	clock.Advance(time.Second)
	second := store.Create(pipeline.Upload{Name: "2"})
	clock.Advance(time.Second)
	_, _ = store.Get(first.ID)
	clock.Advance(time.Second)
	store.Create(pipeline.Upload{Name: "3"})

	if store.Len() != 2 {
		t.Fatalf("Len() = %d", store.Len())
	}
	if _, ok := store.Get(second.ID); ok {
		t.Fatal("least recently used session was kept")
	}
	if _, ok := store.Get(first.ID); !ok {
		t.Fatal("recently used session was evicted")
	}
}

func TestReplaceWaitsForInFlightUse(t *testing.T) {
	store, _ := newTestStore(Config{})
	session := store.Create(pipeline.Upload{Name: "old.csv"})

	started := make(chan struct{})
	release := make(chan struct{})
	seen := make(chan string, 1)
	go func() {
		session.Use(func(upload pipeline.Upload) {
			close(started)
			<-release
			seen <- upload.Name
		})
	}()
	<-started

	replaced := make(chan struct{})
	go func() {
		session.Replace(pipeline.Upload{Name: "new.csv"})
		close(replaced)
	}()
	select {
	case <-replaced:
		t.Fatal("Replace() returned while a question was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	if name := <-seen; name != "old.csv" {
		t.Fatalf("in-flight question saw %q", name)
	}
	<-replaced
	if name := session.Upload().Name; name != "new.csv" {
		t.Fatalf("Upload().Name = %q after Replace()", name)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store, _ := newTestStore(Config{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- store.Run(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
