// Package session provides per-caller ephemeral state: an opaque string
// key-value map held in Redis, referenced from the client by a signed cookie.
// The transport layer owns the lifecycle; business code only reads and writes
// values through the Session.
package session

import "github.com/google/uuid"

// Session is one caller's mutable key-value state. The persistence flag
// controls whether it outlives the browser session.
type Session struct {
	ID string

	values     map[string]string
	persistent bool
	modified   bool
}

// New creates an empty session with a fresh random ID.
func New() *Session {
	return &Session{
		ID:     uuid.NewString(),
		values: make(map[string]string),
	}
}

func restore(id string, values map[string]string, persistent bool) *Session {
	if values == nil {
		values = make(map[string]string)
	}
	return &Session{ID: id, values: values, persistent: persistent}
}

func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key, value string) {
	s.values[key] = value
	s.modified = true
}

func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.modified = true
	}
}

// Clear drops every value and resets the persistence flag.
func (s *Session) Clear() {
	s.values = make(map[string]string)
	s.persistent = false
	s.modified = true
}

func (s *Session) SetPersistent(persistent bool) {
	s.persistent = persistent
	s.modified = true
}

func (s *Session) Persistent() bool { return s.persistent }

// Modified reports whether the session changed since it was loaded or
// created, so the middleware knows whether a save is needed.
func (s *Session) Modified() bool { return s.modified }

// Empty reports whether the session holds no values.
func (s *Session) Empty() bool { return len(s.values) == 0 }
