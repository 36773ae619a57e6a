package api

import (
	"context"
	"sync"

	"github.com/abhisek/parley/internal/session"
)

// Registry holds the live controller of every participant with an open
// session so concurrent requests share one state machine. Controllers
// leave the registry once their session is complete or incomplete.
type Registry struct {
	gw   session.Gateway
	base session.Deps

	mu       sync.Mutex
	sessions map[string]*session.Controller
}

// NewRegistry creates a registry that opens controllers with base.
func NewRegistry(gw session.Gateway, base session.Deps) *Registry {
	return &Registry{
		gw:       gw,
		base:     base,
		sessions: make(map[string]*session.Controller),
	}
}

// Open authenticates the token pair and returns the participant's
// controller, creating it on first use. A cached controller that has
// finished is replaced by one reloaded from the store.
func (r *Registry) Open(ctx context.Context, token, magicToken string) (*session.Controller, error) {
	iv, p, err := session.Resolve(ctx, r.gw, token, magicToken)
	if err != nil {
		return nil, err
	}
	if cur := r.lookup(p.ID); cur != nil {
		if !cur.Snapshot().Phase.Terminal() {
			return cur, nil
		}
		r.Release(cur)
	}

	ctrl, err := session.Load(ctx, r.gw, iv, p, r.base)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[p.ID]; ok {
		// Another request loaded it first.
		return cur, nil
	}
	r.sessions[p.ID] = ctrl
	return ctrl, nil
}

// Release drops ctrl from the registry if its session has finished.
func (r *Registry) Release(ctrl *session.Controller) {
	if !ctrl.Snapshot().Phase.Terminal() {
		return
	}
	id := ctrl.Participant().ID

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sessions[id] == ctrl {
		delete(r.sessions, id)
	}
}

func (r *Registry) lookup(id string) *session.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

// Len returns the number of cached controllers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
