package mcp

import "sync"

// ClientRegistry maps trainee IDs to MCP client session IDs.
// Populated when a trainee starts or acts on a drill session.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]string // traineeID → client session ID
}

// NewClientRegistry creates a new empty ClientRegistry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]string)}
}

// Register associates a trainee ID with a client session ID.
// If the trainee already has a client session, it is overwritten (reconnect).
func (r *ClientRegistry) Register(traineeID, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[traineeID] = clientID
}

// ClientFor returns the client session ID for the given trainee, if connected.
func (r *ClientRegistry) ClientFor(traineeID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cid, ok := r.clients[traineeID]
	return cid, ok
}

// Remove deletes all trainee mappings for the given client session ID.
func (r *ClientRegistry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tid, cid := range r.clients {
		if cid == clientID {
			delete(r.clients, tid)
		}
	}
}

// SessionLocks hands out one mutex per drill session id. Entries are dropped
// once no caller holds or waits for them.
type SessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionLocks creates an empty lock table.
func NewSessionLocks() *SessionLocks {
	return &SessionLocks{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session's mutex is held and returns its release func.
func (l *SessionLocks) Lock(sessionID string) func() {
	l.mu.Lock()
	e := l.locks[sessionID]
	if e == nil {
		e = &sessionLock{}
		l.locks[sessionID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, sessionID)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of live lock entries.
func (l *SessionLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
