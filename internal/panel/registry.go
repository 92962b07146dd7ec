package panel

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"agency-hub/internal/notify"
)

// Registry hands out one Panel per (actor, target, scope) so that the busy
// flag and loaded state survive between requests. Idle panels expire.
type Registry struct {
	panels   *cache.Cache
	perms    PermissionService
	recorder ActivityRecorder
	notifier notify.Notifier
}

func NewRegistry(perms PermissionService, recorder ActivityRecorder, notifier notify.Notifier, idle time.Duration) *Registry {
	return &Registry{
		panels:   cache.New(idle, idle),
		perms:    perms,
		recorder: recorder,
		notifier: notifier,
	}
}

// Panel returns the panel actorID uses to edit target, creating it if needed.
// The boolean is true when the panel was just created and has not been
// loaded yet.
func (r *Registry) Panel(actorID uint, target Target, scope Scope) (*Panel, bool) {
	key := fmt.Sprintf("%d:%s:%s", actorID, target.Email, scope)
	if cached, found := r.panels.Get(key); found {
		p := cached.(*Panel)
		p.setTarget(target)
		r.panels.Set(key, p, cache.DefaultExpiration)
		return p, false
	}

	p := New(target, scope, r.perms, r.recorder, r.notifier)
	if err := r.panels.Add(key, p, cache.DefaultExpiration); err != nil {
		// Lost a race with a concurrent request; use the winner.
		if cached, found := r.panels.Get(key); found {
			return cached.(*Panel), false
		}
	}
	return p, true
}

// Forget drops every panel editing email, e.g. after its address changed.
func (r *Registry) Forget(email string) {
	for key, item := range r.panels.Items() {
		if item.Object.(*Panel).Target().Email == email {
			r.panels.Delete(key)
		}
	}
}
