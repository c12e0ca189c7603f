package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session is the per-caller state of the certificate pipeline.
type Session struct {
	ID string

	generating atomic.Bool
	lastSeen   atomic.Int64

	mu         sync.Mutex
	trackingID string
}

// NewSession returns an idle session.
func NewSession(id string) *Session {
	s := &Session{ID: id}
	s.touch(time.Now())
	return s
}

// TryBegin marks the session as generating. It returns false if a
// generation is already running.
func (s *Session) TryBegin() bool { return s.generating.CompareAndSwap(false, true) }

// End clears the generating flag.
func (s *Session) End() { s.generating.Store(false) }

// Generating reports whether a generation is running.
func (s *Session) Generating() bool { return s.generating.Load() }

// RememberTrackingID records the last tracking link the session arrived
// through. Empty ids are ignored.
func (s *Session) RememberTrackingID(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	s.trackingID = id
	s.mu.Unlock()
}

// TrackingID returns the last remembered tracking id.
func (s *Session) TrackingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackingID
}

func (s *Session) touch(t time.Time) { s.lastSeen.Store(t.UnixNano()) }

func (s *Session) idleSince(t time.Time) time.Duration {
	return t.Sub(time.Unix(0, s.lastSeen.Load()))
}

// SessionRegistry keeps sessions by id and evicts idle ones.
type SessionRegistry struct {
	TTL time.Duration
	Now func() time.Time

	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time
}

// NewSessionRegistry returns a registry evicting sessions idle for ttl.
func NewSessionRegistry(ttl time.Duration) *SessionRegistry {
	return &SessionRegistry{TTL: ttl, sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Get returns the session for id, creating it when absent.
func (r *SessionRegistry) Get(id string) *Session {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions == nil {
		r.sessions = make(map[string]*Session)
	}
	if r.TTL > 0 && now.Sub(r.lastSweep) >= r.TTL {
		r.sweepLocked(now)
	}
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id}
		r.sessions[id] = s
	}
	s.touch(now)
	return s
}

// Sweep evicts idle sessions that are not generating and returns how many
// were removed.
func (r *SessionRegistry) Sweep() int {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

func (r *SessionRegistry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	if r.TTL <= 0 {
		return 0
	}
	n := 0
	for id, s := range r.sessions {
		if !s.Generating() && s.idleSince(now) >= r.TTL {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
