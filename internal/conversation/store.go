package conversation

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hurttlocker/craving/internal/extract"
)

// Pending is a partially filled craving awaiting a follow-up answer.
type Pending struct {
	UserID         string          `json:"user_id"`
	ConversationID string          `json:"conversation_id"`
	Record         extract.Record  `json:"record"`
	Missing        extract.Missing `json:"missing"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Expired reports whether p is older than ttl at now.
func (p Pending) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.CreatedAt) > ttl
}

// Store holds at most one Pending per user. The Machine serializes access
// per user, so implementations only need to be safe across users.
type Store interface {
	Get(ctx context.Context, userID string) (Pending, bool, error)
	Put(ctx context.Context, p Pending) error
	Delete(ctx context.Context, userID string) error
}

// Sweeper is implemented by stores that can drop stale entries in bulk.
type Sweeper interface {
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore is an in-process Store. Entries are retained for a grace
// period beyond the conversation TTL; expiry decisions are made by the
// Machine against its own clock.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore returns a store that forgets entries after retention.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{c: cache.New(retention, 0)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID string) (Pending, bool, error) {
	v, ok := s.c.Get(userID)
	if !ok {
		return Pending{}, false, nil
	}
	p := v.(Pending)
	p.Record = p.Record.Clone()
	return p, true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, p Pending) error {
	p.Record = p.Record.Clone()
	s.c.Set(p.UserID, p, cache.DefaultExpiration)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.c.Delete(userID)
	return nil
}

// DeleteExpired drops entries created before the cutoff.
func (s *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	s.c.DeleteExpired()
	n := 0
	for k, item := range s.c.Items() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if p, ok := item.Object.(Pending); ok && p.CreatedAt.Before(before) {
			s.c.Delete(k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of retained entries.
func (s *MemoryStore) Len() int { return s.c.ItemCount() }
