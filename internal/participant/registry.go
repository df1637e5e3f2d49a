package participant

import "sync"

// Participant is a connection that completed the name handshake.
// ConnectionKey identifies it; Identity is a display name and may repeat.
type Participant struct {
	Identity      string `json:"identity"`
	ConnectionKey string `json:"connection_key"`
}

// Registry is the directory of currently connected participants, keyed by
// connection address. It is safe for concurrent use.
type Registry struct {
	mu           sync.Mutex
	participants map[string]Participant
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]Participant),
	}
}

// Register inserts the participant for connectionKey, replacing any prior entry.
func (r *Registry) Register(connectionKey, identity string) {
	p := Participant{Identity: identity, ConnectionKey: connectionKey}

	r.mu.Lock()
	r.participants[connectionKey] = p
	r.mu.Unlock()
}

// Deregister removes the entry for connectionKey. Unknown keys are ignored.
func (r *Registry) Deregister(connectionKey string) {
	r.mu.Lock()
	delete(r.participants, connectionKey)
	r.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all participants in no particular order.
func (r *Registry) Snapshot() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Identities returns the display names of a snapshot.
func (r *Registry) Identities() []string {
	snapshot := r.Snapshot()
	names := make([]string, 0, len(snapshot))
	for _, p := range snapshot {
		names = append(names, p.Identity)
	}
	return names
}

// Len reports how many participants are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}
