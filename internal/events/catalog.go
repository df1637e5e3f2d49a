package events

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrInvalidTopic is returned for a topic whose name or description is unusable.
	ErrInvalidTopic = errors.New("invalid topic")
	// ErrDuplicateTopic is returned when a topic name is registered twice.
	ErrDuplicateTopic = errors.New("topic already registered")
)

// Topic names are dot separated lowercase segments, e.g. relay.participant.joined.
var topicName = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z][a-z0-9_]*)*$`)

// Topic describes one observer bus topic.
type Topic struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Catalog is the set of topics the relay publishes on its observer bus.
type Catalog struct {
	mu     sync.RWMutex
	topics map[string]Topic
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{topics: make(map[string]Topic)}
}

// Register validates a topic and adds it.
func (c *Catalog) Register(name, description string) error {
	if !topicName.MatchString(name) {
		return fmt.Errorf("%w: name %q must be dot separated lowercase segments", ErrInvalidTopic, name)
	}
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("%w: %s has no description", ErrInvalidTopic, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.topics[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTopic, name)
	}
	c.topics[name] = Topic{Name: name, Description: description}
	return nil
}

// Get looks a topic up by name.
func (c *Catalog) Get(name string) (Topic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.topics[name]
	return t, ok
}

// List returns every topic ordered by name.
func (c *Catalog) List() []Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Topic, 0, len(c.topics))
	for _, t := range c.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type describedEvent interface {
	Name() string
	Description() string
}

// DefaultCatalog returns a catalog holding every lifecycle event.
func DefaultCatalog() (*Catalog, error) {
	c := NewCatalog()
	for _, e := range []describedEvent{ParticipantJoined, ParticipantLeft, CommandReceived} {
		if err := c.Register(e.Name(), e.Description()); err != nil {
			return nil, err
		}
	}
	return c, nil
}
