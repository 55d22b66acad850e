// Package watch keeps track of path subscriptions and delivers file change
// events to them.
//
// Events are never delivered inside the call that produced them. Dispatch
// appends to a FIFO queue and returns; a single background goroutine drains
// the queue and invokes handlers one at a time. This gives every writer the
// chance to finish its own bookkeeping (for example marking a change as
// already applied by the editor) before any handler observes it.
package watch

import (
	"sync"

	"github.com/google/uuid"

	"github.com/esm-dev/modern-monaco-sub001/internal/logger"
	"github.com/esm-dev/modern-monaco-sub001/pkg/vpath"
)

// Kind is the type of change an event describes.
type Kind string

const (
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindRemove Kind = "remove"
)

// Event is a single change notification.
type Event struct {
	Kind Kind
	Path string

	// Context is the value the writer attached to the mutation, if any
	Context any
}

// Handler receives events. Handlers run on the registry's dispatcher
// goroutine and may call Register and Unregister, but must not call Flush.
type Handler func(Event)

// Registration is one live subscription.
type Registration struct {
	ID        uuid.UUID
	Path      string
	Recursive bool

	handler Handler
	active  bool
}

// Matches reports whether an event at path should reach this registration.
func (r *Registration) Matches(path string) bool {
	if r.Path == path {
		return true
	}
	if !r.Recursive {
		return false
	}
	return vpath.IsRoot(r.Path) || vpath.IsDescendant(path, r.Path)
}

// Registry holds watch registrations and the pending event queue.
//
// Thread Safety:
// All methods are safe for concurrent use. Handler invocations are
// serialized on one goroutine, in queue order and, for a given event, in
// registration order.
type Registry struct {
	mu      sync.Mutex
	idle    *sync.Cond
	regs    []*Registration
	queue   []queued
	running bool
}

// queued is an event together with the registrations that matched it when
// it was dispatched. Registrations added later never see it.
type queued struct {
	event   Event
	targets []*Registration
}

// NewRegistry creates an empty registry. The dispatcher goroutine is started
// on demand and exits whenever the queue is empty.
func NewRegistry() *Registry {
	r := &Registry{}
	r.idle = sync.NewCond(&r.mu)
	return r
}

// Register subscribes handler to events at path, or at path and everything
// below it when recursive is set. The path is normalized first.
func (r *Registry) Register(path string, recursive bool, handler Handler) *Registration {
	reg := &Registration{
		ID:        uuid.New(),
		Path:      vpath.Normalize(path),
		Recursive: recursive,
		handler:   handler,
		active:    true,
	}

	r.mu.Lock()
	r.regs = append(r.regs, reg)
	r.mu.Unlock()

	logger.Debug("watch: registered %s on %s (recursive=%v)", reg.ID, reg.Path, recursive)
	return reg
}

// Unregister removes a registration. Deliveries that have not begun when
// Unregister is called are dropped, including those for events queued
// earlier. A delivery that already began may still run its handler once,
// even after Unregister returns. Handlers may unregister themselves, so
// Unregister never waits for the dispatcher.
//
// Returns false if the id was not registered.
func (r *Registry) Unregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, reg := range r.regs {
		if reg.ID == id {
			reg.active = false
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			logger.Debug("watch: unregistered %s", id)
			return true
		}
	}
	return false
}

// Dispatch queues events for delivery and returns immediately.
func (r *Registry) Dispatch(events ...Event) {
	if len(events) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range events {
		r.queue = append(r.queue, queued{event: ev, targets: r.match(ev.Path)})
	}
	if !r.running {
		r.running = true
		go r.run()
	}
}

// Flush blocks until every event queued so far has been delivered.
func (r *Registry) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.running || len(r.queue) > 0 {
		r.idle.Wait()
	}
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.regs)
}

// Pending returns the number of queued, undelivered events.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *Registry) run() {
	for {
		r.mu.Lock()
		if len(r.queue) == 0 {
			r.running = false
			r.idle.Broadcast()
			r.mu.Unlock()
			return
		}

		next := r.queue[0]
		r.queue[0] = queued{}
		r.queue = r.queue[1:]
		r.mu.Unlock()

		ev := next.event
		for _, reg := range next.targets {
			if !r.begin(reg) {
				continue
			}
			r.deliver(reg, ev)
		}
	}
}

// match returns the live registrations for path, in registration order.
// Callers hold r.mu.
func (r *Registry) match(path string) []*Registration {
	var targets []*Registration
	for _, reg := range r.regs {
		if reg.Matches(path) {
			targets = append(targets, reg)
		}
	}
	return targets
}

// begin re-checks liveness under the lock Unregister takes. A delivery whose
// check ran before Unregister may still invoke the handler once after
// Unregister returns; every later delivery is skipped.
func (r *Registry) begin(reg *Registration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return reg.active
}

func (r *Registry) deliver(reg *Registration, ev Event) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("watch: handler %s panicked on %s %s: %v", reg.ID, ev.Kind, ev.Path, p)
		}
	}()
	reg.handler(ev)
}
