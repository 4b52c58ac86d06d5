package proxy

import "sync"

// registry tracks in-flight sessions. Sessions unregister themselves when
// they finish, so the map never grows with dead entries under a connection
// flood. Shutdown does not drain it: in-flight sessions never block the
// process from exiting.
type registry struct {
	mu       sync.Mutex
	next     int
	sessions map[int]*Session
}

func newRegistry() *registry {
	return &registry{sessions: map[int]*Session{}}
}

func (r *registry) add(s *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.sessions[id] = s
	return id
}

func (r *registry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
