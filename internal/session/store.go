package session

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/billet-counter/internal/imaging"
)

// Store holds sessions by ID and expires idle ones.
type Store struct {
	ttl time.Duration

	// Now is the clock used for expiry. Tests replace it.
	Now func() time.Time

	// OnEvict, when set, is called for every session removed by Delete or
	// Sweep, outside the store lock.
	OnEvict func(State)

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates a store whose sessions expire after ttl without use.
// A ttl of zero keeps sessions until they are deleted.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		Now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create starts a session for an image.
func (st *Store) Create(imageID string, img image.Image, info imaging.ImageInfo) *Session {
	now := st.Now()
	s := &Session{
		id:       uuid.NewString(),
		created:  now,
		lastUsed: now,
	}
	s.SetImage(imageID, img, info)

	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()

	return s
}

// Get returns a live session and marks it used.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()

	if !ok || st.expired(s, st.Now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.touch(st.Now())
	return s, nil
}

// Delete removes a session. It reports whether the session existed.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok && st.OnEvict != nil {
		st.OnEvict(s.State())
	}
	return ok
}

// Len returns the number of stored sessions, expired or not.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.Now()

	var removed []*Session
	st.mu.Lock()
	for id, s := range st.sessions {
		if st.expired(s, now) {
			delete(st.sessions, id)
			removed = append(removed, s)
		}
	}
	st.mu.Unlock()

	if st.OnEvict != nil {
		for _, s := range removed {
			st.OnEvict(s.State())
		}
	}
	return len(removed)
}

// Run sweeps every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				log.Printf("Expired %d idle session(s)", n)
			}
		}
	}
}

func (st *Store) expired(s *Session, now time.Time) bool {
	return st.ttl > 0 && now.Sub(s.idleSince()) > st.ttl
}
