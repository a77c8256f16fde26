// Package state keeps the last known state of every entity.
package state

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	On          = "on"
	Off         = "off"
	Unavailable = "unavailable"
)

var ErrNotFound = errors.New("entity not found")

// State of one entity.
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// IsOn reports whether the entity is available and on.
func (s State) IsOn() bool {
	return s.State == On
}

func (s State) Available() bool {
	return s.State != Unavailable
}

// FromBool returns On or Off.
func FromBool(on bool) string {
	if on {
		return On
	}
	return Off
}

// Store holds entity states.
//
// Watchers are called after every successful Set, in the goroutine that
// called Set.
type Store interface {
	Get(entityID string) (State, error)
	Set(entityID, state string, attrs map[string]interface{}) (State, error)
	List() ([]State, error)
	// Retain deletes every entity keep rejects, returning the deleted ids.
	// Watchers are not called.
	Retain(keep func(entityID string) bool) ([]string, error)
	Watch(fn func(State)) (unwatch func())
	Close() error
}

// next stamps the new state given the previous one, if any.
func next(prev *State, entityID, value string, attrs map[string]interface{}, now time.Time) State {
	st := State{
		EntityID:    entityID,
		State:       value,
		Attributes:  maps.Clone(attrs),
		LastChanged: now,
		LastUpdated: now,
	}
	if st.Attributes == nil {
		st.Attributes = map[string]interface{}{}
	}
	if prev != nil && prev.State == value {
		st.LastChanged = prev.LastChanged
	}
	return st
}

type watchers struct {
	mu  sync.Mutex
	seq int
	fns map[int]func(State)
}

// Watch registers fn to be called after every Set.
func (w *watchers) Watch(fn func(State)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = map[int]func(State){}
	}
	w.seq++
	id := w.seq
	w.fns[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.fns, id)
	}
}

func (w *watchers) notify(st State) {
	w.mu.Lock()
	fns := maps.Values(w.fns)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Memory is a Store that keeps states in memory.
type Memory struct {
	mu     sync.RWMutex
	states map[string]State
	now    func() time.Time
	watchers
}

var _ Store = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		states: map[string]State{},
		now:    time.Now,
	}
}

func (m *Memory) Get(entityID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[entityID]
	if !ok {
		return State{}, ErrNotFound
	}
	st.Attributes = maps.Clone(st.Attributes)
	return st, nil
}

func (m *Memory) Set(entityID, value string, attrs map[string]interface{}) (State, error) {
	m.mu.Lock()
	var prev *State
	if st, ok := m.states[entityID]; ok {
		prev = &st
	}
	st := next(prev, entityID, value, attrs, m.now())
	m.states[entityID] = st
	m.mu.Unlock()

	st.Attributes = maps.Clone(st.Attributes)
	m.notify(st)
	return st, nil
}

func (m *Memory) List() ([]State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]State, 0, len(m.states))
	for _, st := range m.states {
		st.Attributes = maps.Clone(st.Attributes)
		result = append(result, st)
	}
	sortByID(result)
	return result, nil
}

func (m *Memory) Retain(keep func(entityID string) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for id := range m.states {
		if !keep(id) {
			delete(m.states, id)
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	return removed, nil
}

func (m *Memory) Close() error { return nil }
