// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package auth

import (
	"sync"

	"github.com/satori/go.uuid"
)

// Sessions maps session identifiers, as carried in a cookie, to users.
type Sessions interface {
	// User returns the user logged in to a session, or nil if the
	// session is unknown.
	User(id string) User
}

// MemorySessions is an in-process Sessions store.
type MemorySessions struct {
	lock     sync.RWMutex
	sessions map[string]User
}

// NewMemorySessions creates an empty session store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]User)}
}

// Login starts a new session for u and returns its identifier.
func (s *MemorySessions) Login(u User) string {
	id := uuid.NewV4().String()
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sessions[id] = u
	return id
}

// Logout ends a session.  Unknown sessions are ignored.
func (s *MemorySessions) Logout(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
}

// User returns the user of session id, or nil.
func (s *MemorySessions) User(id string) User {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.sessions[id]
}
