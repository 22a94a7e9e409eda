package server

import "sync"

// SessionRegistry maps a logged-in user to their client session so worker
// events (transfer ports, upload acks) can be relayed to the owning client.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*ClientSession)}
}

// Add binds the session to the email. A later login for the same email takes
// over the binding.
func (r *SessionRegistry) Add(email string, session *ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[email] = session
}

// Remove unbinds only if the email still points at this session, so a
// reconnected client is not torn down by its predecessor's cleanup.
func (r *SessionRegistry) Remove(email string, session *ClientSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[email] == session {
		delete(r.sessions, email)
	}
}

func (r *SessionRegistry) Get(email string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[email]
	return session, ok
}
