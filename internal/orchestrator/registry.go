package orchestrator

import (
	"context"
	"sync"

	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/domain"
)

// Registry tracks the live actor for each session. One actor per session; a
// second create for the same ID returns the existing one so a double
// bootstrap cannot fork the state.
type Registry struct {
	svc *Service

	mu     sync.RWMutex
	actors map[domain.SessionID]*Actor

	ctx  context.Context
	opts []ActorOption
}

func NewRegistry(ctx context.Context, svc *Service, opts ...ActorOption) *Registry {
	return &Registry{
		svc:    svc,
		actors: make(map[domain.SessionID]*Actor),
		ctx:    ctx,
		opts:   opts,
	}
}

// Create starts an actor for the initial state, or returns the existing one.
func (r *Registry) Create(initial State) *Actor {
	id := initial.Session.ID

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.actors[id]; ok {
		return a
	}

	a := NewActor(r.svc, initial, r.opts...)
	a.Start(r.ctx)
	r.actors[id] = a
	return a
}

// Get returns the actor owning a session.
func (r *Registry) Get(id domain.SessionID) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[id]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no live session")
	}
	return a, nil
}

// Remove drops a session's actor. Called when a terminal state is observed;
// the actor's goroutine exits with the registry context.
func (r *Registry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, id)
}

// Len reports the number of live sessions, for health reporting.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}
