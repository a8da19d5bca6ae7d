// Package presence tracks which connections are viewing which project and
// board. It is the source of truth for who is online.
package presence

import (
	"sort"
	"sync"
)

// Connection is one live transport session and its room membership.
// ProjectID and BoardID are zero when the connection has not joined.
type Connection struct {
	ID        string
	UserID    string
	Username  string
	AvatarRef string
	ProjectID uint
	BoardID   uint
}

// Summary is one entry of a project's presence listing.
type Summary struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// Registry is safe for concurrent use. Every read returns a consistent
// snapshot taken under the lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
	// joinOrder keeps listings stable across calls.
	seq       uint64
	joinOrder map[string]uint64
	dedupe    bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithDedupeUsers collapses a user's connections into one listing entry.
func WithDedupeUsers(on bool) Option {
	return func(r *Registry) { r.dedupe = on }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns:     make(map[string]Connection),
		joinOrder: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join registers connID in projectID, replacing any earlier membership.
// Changing project clears the board context. Calling it again with the same
// arguments is a no-op.
func (r *Registry) Join(connID, userID, username, avatarRef string, projectID uint) Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		r.seq++
		r.joinOrder[connID] = r.seq
	}
	if c.ProjectID != projectID {
		c.BoardID = 0
	}
	c.ID = connID
	c.UserID = userID
	c.Username = username
	c.AvatarRef = avatarRef
	c.ProjectID = projectID
	r.conns[connID] = c
	return c
}

// SetBoardContext scopes connID to boardID, leaving any previous board.
// It reports false when connID is not registered.
func (r *Registry) SetBoardContext(connID string, boardID uint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return false
	}
	c.BoardID = boardID
	r.conns[connID] = c
	return true
}

// Leave removes all membership for connID and returns what it held.
// Unknown ids are a no-op.
func (r *Registry) Leave(connID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	delete(r.conns, connID)
	delete(r.joinOrder, connID)
	return c, true
}

// Get returns the connection record for connID.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	return c, ok
}

// ListByProject returns the presence listing for projectID in join order.
// Each connection appears separately unless the registry deduplicates users.
func (r *Registry) ListByProject(projectID uint) []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.matching(func(c Connection) bool { return c.ProjectID == projectID })
	out := make([]Summary, 0, len(conns))
	seen := make(map[string]bool)
	for _, c := range conns {
		if r.dedupe {
			if seen[c.UserID] {
				continue
			}
			seen[c.UserID] = true
		}
		out = append(out, Summary{UserID: c.UserID, Username: c.Username, AvatarRef: c.AvatarRef})
	}
	return out
}

// ConnectionsInProject returns the ids of every connection joined to projectID.
func (r *Registry) ConnectionsInProject(projectID uint) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ids(r.matching(func(c Connection) bool { return c.ProjectID == projectID }))
}

// ConnectionsOnBoard returns the ids of every connection scoped to boardID.
func (r *Registry) ConnectionsOnBoard(boardID uint) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return ids(r.matching(func(c Connection) bool { return boardID != 0 && c.BoardID == boardID }))
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// matching must be called with r.mu held.
func (r *Registry) matching(keep func(Connection) bool) []Connection {
	var out []Connection
	for _, c := range r.conns {
		if c.ProjectID != 0 && keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.joinOrder[out[i].ID] < r.joinOrder[out[j].ID]
	})
	return out
}

func ids(conns []Connection) []string {
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.ID
	}
	return out
}
