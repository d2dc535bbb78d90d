package apiclient

import "sync"

// Session holds the caller's tokens. It is safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	access   string
	refresh  string
	onChange func(access, refresh string)
	onExpire func()
}

// NewSession creates a session from previously stored tokens. Both may be empty.
func NewSession(access, refresh string) *Session {
	return &Session{access: access, refresh: refresh}
}

// OnChange registers a hook called with the new tokens whenever they change,
// so they can be persisted.
func (s *Session) OnChange(fn func(access, refresh string)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// OnExpire registers a hook called when the session can no longer be refreshed.
func (s *Session) OnExpire(fn func()) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// Tokens returns the current access and refresh tokens.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.refresh
}

// Authenticated reports whether an access token is present.
func (s *Session) Authenticated() bool {
	access, _ := s.Tokens()
	return access != ""
}

// Set replaces the tokens and fires the change hook.
func (s *Session) Set(access, refresh string) {
	s.mu.Lock()
	s.access, s.refresh = access, refresh
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(access, refresh)
	}
}

// Clear drops the tokens and fires the change hook, then the expiry hook.
func (s *Session) Clear() {
	s.Set("", "")

	s.mu.Lock()
	fn := s.onExpire
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
