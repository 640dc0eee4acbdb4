package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
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

type sequentialIDs struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to expose sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Blob{}); err != nil {
		t.Fatalf("failed to migrate blob schema: %v", err)
	}

	clock := &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
	kv, err := NewGormKV(db, func() int64 { return clock.Now().Unix() })
	if err != nil {
		t.Fatalf("failed to build kv: %v", err)
	}

	s, err := NewStore(StoreConfig{
		KV:         kv,
		Clock:      clock.Now,
		IDProvider: &sequentialIDs{},
		Logger:     zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return s, clock
}

func mustSaveEvent(t *testing.T, s *Store, event Event) Event {
	t.Helper()
	saved, err := s.SaveEvent(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	return saved
}

func mustSaveComment(t *testing.T, s *Store, comment Comment) Comment {
	t.Helper()
	saved, err := s.SaveComment(context.Background(), comment)
	if err != nil {
		t.Fatalf("unexpected comment save error: %v", err)
	}
	return saved
}

func mustSaveLike(t *testing.T, s *Store, like CommentLike) CommentLike {
	t.Helper()
	saved, err := s.SaveCommentLike(context.Background(), like)
	if err != nil {
		t.Fatalf("unexpected like save error: %v", err)
	}
	return saved
}
