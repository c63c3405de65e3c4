package vfs

import "sync"

// Session holds the in-memory, session-scoped files: screenshots and plans.
// They are keyed by location so navigating away and back within one session
// finds them again, and they vanish with the session.
type Session struct {
	mu    sync.Mutex
	files map[string]*File
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{files: make(map[string]*File)}
}

func sessionKey(kind FileKind, loc Location) string {
	return string(kind) + "|" + loc.Domain + "|" + NormalizeURLPath(loc.URLPath)
}

// Get returns the session file for kind at loc.
func (s *Session) Get(kind FileKind, loc Location) (*File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[sessionKey(kind, loc)]
	if !ok {
		return nil, false
	}
	cp := *f
	return &cp, true
}

// Put creates or overwrites the session file and returns its new version.
func (s *Session) Put(kind FileKind, loc Location, content string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(kind, loc)
	if f, ok := s.files[key]; ok {
		f.bump(content)
		return f.Version
	}
	f := newFile(content)
	s.files[key] = f
	return f.Version
}

// Delete removes the session file, reporting whether it existed.
func (s *Session) Delete(kind FileKind, loc Location) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(kind, loc)
	_, ok := s.files[key]
	delete(s.files, key)
	return ok
}
