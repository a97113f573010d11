// Package registry implements the per-pod scope registry: the
// in-memory map from a scope to the set of local connections subscribed
// to it, and the local fan-out of incoming events to those connections.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chatify/chatify/internal/domain"
	"github.com/chatify/chatify/internal/metrics"
)

// Subscriber is anything a scope can deliver a ChatEvent to. The websocket
// transport's Client satisfies this.
type Subscriber interface {
	ID() string
	Deliver(scope domain.ScopeKey, event domain.ChatEvent) error
}

// Registry holds the scope -> subscriber-set mapping for one pod. All
// methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	scopes map[domain.ScopeKey]map[string]Subscriber
	log    *logrus.Entry
}

// New constructs an empty Registry.
func New(log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		scopes: make(map[domain.ScopeKey]map[string]Subscriber),
		log:    log.WithField("component", "scope_registry"),
	}
}

// Join adds sub to scope's member set, creating the set if absent.
func (r *Registry) Join(scope domain.ScopeKey, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.scopes[scope]
	if !ok {
		members = make(map[string]Subscriber)
		r.scopes[scope] = members
	}
	members[sub.ID()] = sub
}

// Leave removes sub from scope's member set. If the set becomes empty the
// entry is dropped so the map does not grow unbounded with dead scopes.
func (r *Registry) Leave(scope domain.ScopeKey, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.scopes[scope]
	if !ok {
		return
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(r.scopes, scope)
	}
}

// LeaveAll removes sub from every scope it belongs to. Called on
// disconnect; cost is O(len(scopes)).
func (r *Registry) LeaveAll(sub Subscriber, scopes []domain.ScopeKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, scope := range scopes {
		members, ok := r.scopes[scope]
		if !ok {
			continue
		}
		delete(members, sub.ID())
		if len(members) == 0 {
			delete(r.scopes, scope)
		}
	}
}

// Broadcast delivers event to every subscriber currently joined to scope.
// It takes a snapshot of the member set before iterating, so joins/leaves
// happening concurrently never race with delivery. Per-subscriber
// delivery failures are logged and do not abort the broadcast.
func (r *Registry) Broadcast(scope domain.ScopeKey, event domain.ChatEvent) {
	snapshot := r.snapshot(scope)
	for _, sub := range snapshot {
		if err := sub.Deliver(scope, event); err != nil {
			metrics.BroadcastDeliveriesTotal.WithLabelValues("dropped").Inc()
			r.log.WithFields(logrus.Fields{
				"scope":      scope.String(),
				"connection": sub.ID(),
				"error":      err,
			}).Warn("dropping delivery to subscriber")
			continue
		}
		metrics.BroadcastDeliveriesTotal.WithLabelValues("delivered").Inc()
	}
}

// MemberCount returns the number of locally joined connections for scope,
// used only for observability.
func (r *Registry) MemberCount(scope domain.ScopeKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.scopes[scope])
}

func (r *Registry) snapshot(scope domain.ScopeKey) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.scopes[scope]
	out := make([]Subscriber, 0, len(members))
	for _, sub := range members {
		out = append(out, sub)
	}
	return out
}
