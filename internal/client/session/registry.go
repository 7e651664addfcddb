package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/reviewdesk/internal/client/models"
	"github.com/dmitrijs2005/reviewdesk/internal/logging"
)

// Listener receives a private copy of the session after every change.
type Listener func(models.Session)

type subscription struct {
	id uint64
	fn Listener
}

// Registry fans session snapshots out to observers, synchronously and in
// subscription order. A panicking listener is logged and skipped.
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
	log    logging.Logger
}

func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.Discard()
	}
	return &Registry{log: log.With("component", "session_registry")}
}

// Subscribe registers fn and returns its unsubscribe function. Calling the
// returned function more than once is harmless.
func (r *Registry) Subscribe(fn Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.id == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return
		}
	}
}

// Notify delivers snapshot to the listeners registered at call time.
// Listeners may subscribe or unsubscribe from inside the callback.
func (r *Registry) Notify(snapshot models.Session) {
	r.mu.Lock()
	subs := make([]subscription, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		r.deliver(s, snapshot.Clone())
	}
}

func (r *Registry) deliver(s subscription, snapshot models.Session) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error(context.Background(), "session listener panicked",
				"subscriber", s.id, "panic", fmt.Sprint(p))
		}
	}()
	s.fn(snapshot)
}
