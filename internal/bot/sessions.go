package bot

import (
	"sync"
	"time"
)

const sessionTTL = 30 * time.Minute

type sessionKind int

const (
	sessionSettingInput sessionKind = iota + 1
	sessionBroadcast
)

// session is a pending input an admin opened from the panel. The next
// message from that user completes it.
type session struct {
	kind    sessionKind
	key     string
	created time.Time
}

type sessions struct {
	mu   sync.Mutex
	byID map[int64]session
	now  func() time.Time
}

func newSessions() *sessions {
	return &sessions{byID: make(map[int64]session), now: time.Now}
}

func (s *sessions) open(userID int64, kind sessionKind, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[userID] = session{kind: kind, key: key, created: s.now()}
}

// peek returns the live session of the given kind without consuming it.
func (s *sessions) peek(userID int64, kind sessionKind) (session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[userID]
	if !ok {
		return session{}, false
	}
	if s.now().Sub(current.created) > sessionTTL {
		delete(s.byID, userID)
		return session{}, false
	}
	return current, current.kind == kind
}

// take removes and returns the live session of the given kind.
func (s *sessions) take(userID int64, kind sessionKind) (session, bool) {
	current, ok := s.peek(userID, kind)
	if !ok {
		return session{}, false
	}
	s.mu.Lock()
	delete(s.byID, userID)
	s.mu.Unlock()
	return current, true
}

func (s *sessions) clear(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[userID]
	delete(s.byID, userID)
	return ok
}
