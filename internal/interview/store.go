package interview

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/questlabs/interviewd/internal/logger"
)

const (
	defaultStoreCapacity = 256
	defaultStoreTTL      = 2 * time.Hour
)

// Store holds live sessions in memory with a TTL and a capacity bound.
// Sessions are not persisted; a process restart loses them. The eviction
// policy replaces the original system's unbounded never-expiring table.
type Store struct {
	lru    *expirable.LRU[string, *Session]
	logger *zap.Logger
}

// NewStore creates a session store. Non-positive capacity or TTL fall back
// to the defaults.
func NewStore(capacity int, ttl time.Duration, log *zap.Logger) *Store {
	if capacity <= 0 {
		capacity = defaultStoreCapacity
	}
	if ttl <= 0 {
		ttl = defaultStoreTTL
	}

	if log == nil {
		log = zap.NewNop()
	}

	st := &Store{logger: log}
	st.lru = expirable.NewLRU[string, *Session](capacity, st.onEvict, ttl)
	return st
}

// onEvict may fire from the LRU's reaper goroutine while the session is
// being mutated under its own lock, so it reads only immutable fields.
func (st *Store) onEvict(id string, sess *Session) {
	st.logger.Debug("session evicted",
		zap.String(logger.FieldSession, id),
		zap.Time("created_at", sess.CreatedAt),
	)
}

// Add registers a session under its id.
func (st *Store) Add(sess *Session) {
	st.lru.Add(sess.ID, sess)
}

// Get returns the session for the id, if it is still live.
func (st *Store) Get(id string) (*Session, bool) {
	return st.lru.Get(id)
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	return st.lru.Len()
}
