package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/partyhub/internal/core"
	"github.com/dkeye/partyhub/internal/domain"
)

// Sessions is the in-memory identity directory: every user ever seen, and
// the live session of each connected one. It implements core.SessionProvider.
type Sessions struct {
	mu       sync.RWMutex
	users    map[domain.UserID]domain.User
	sessions map[core.SessionID]core.Session
	byUser   map[domain.UserID]core.SessionID
}

var _ core.SessionProvider = (*Sessions)(nil)

func NewSessions() *Sessions {
	return &Sessions{
		users:    make(map[domain.UserID]domain.User),
		sessions: make(map[core.SessionID]core.Session),
		byUser:   make(map[domain.UserID]core.SessionID),
	}
}

// Register adds or refreshes a known user without opening a session.
func (s *Sessions) Register(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Open binds sid to u, replacing any older session of the same user.
// The replaced session id is returned so its connection can be dropped.
func (s *Sessions) Open(sid core.SessionID, u domain.User) (core.Session, core.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var replaced core.SessionID
	if prev, ok := s.byUser[u.ID]; ok && prev != sid {
		delete(s.sessions, prev)
		replaced = prev
	}
	if old, ok := s.sessions[sid]; ok && old.User.ID != u.ID {
		delete(s.byUser, old.User.ID)
	}
	sess := core.Session{ID: sid, User: u}
	s.users[u.ID] = u
	s.sessions[sid] = sess
	s.byUser[u.ID] = sid
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("user", string(u.ID)).Msg("session opened")
	return sess, replaced
}

// Close forgets the session; the user stays in the directory.
func (s *Sessions) Close(sid core.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return
	}
	delete(s.sessions, sid)
	if s.byUser[sess.User.ID] == sid {
		delete(s.byUser, sess.User.ID)
	}
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Msg("session closed")
}

func (s *Sessions) UpdateUsername(sid core.SessionID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return core.ErrSessionNotFound
	}
	u, err := domain.NewUser(sess.User.ID, name, sess.User.Platform)
	if err != nil {
		return err
	}
	sess.User = *u
	s.sessions[sid] = sess
	s.users[u.ID] = *u
	log.Info().Str("module", "app.sessions").Str("sid", string(sid)).Str("username", u.Username).Msg("updated username")
	return nil
}

func (s *Sessions) GetSession(_ context.Context, sid core.SessionID) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sid]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Sessions) GetSessionByUser(_ context.Context, uid domain.UserID) (core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sid, ok := s.byUser[uid]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return s.sessions[sid], nil
}

func (s *Sessions) GetUser(_ context.Context, uid domain.UserID) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return domain.User{}, core.ErrUserNotFound
	}
	return u, nil
}
