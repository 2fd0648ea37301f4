// File: internal/portal/state.go
package portal

import (
	"sync"
	"time"
)

// SessionState is the single slot holding the most recently captured session
// headers and cookies. Every matching navigation request overwrites it
// (latest wins); only the capture preceding the bridge resolution matters in
// practice, but later overwrites are harmless and intentional.
type SessionState struct {
	mu         sync.RWMutex
	headers    SessionHeaders
	cookies    SessionCookies
	capturedAt time.Time
}

// NewSessionState returns an empty state; Snapshot reports absence until the
// first header capture.
func NewSessionState() *SessionState {
	return &SessionState{}
}

// SetHeaders replaces the captured header set.
func (s *SessionState) SetHeaders(h SessionHeaders) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = h.Clone()
	s.capturedAt = time.Now()
}

// SetCookies replaces the captured cookie set. Cookies arrive asynchronously
// after the header capture, so they are tracked independently.
func (s *SessionState) SetCookies(c SessionCookies) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = c.Clone()
}

// Snapshot returns copies of the captured headers and cookies. The boolean is
// false until headers have been captured at least once.
func (s *SessionState) Snapshot() (SessionHeaders, SessionCookies, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.headers == nil {
		return nil, nil, false
	}
	return s.headers.Clone(), s.cookies.Clone(), true
}

// CapturedAt returns when the headers were last overwritten.
func (s *SessionState) CapturedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturedAt
}
