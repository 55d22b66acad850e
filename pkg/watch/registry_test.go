package watch

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects events delivered to a handler.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, string(ev.Kind)+" "+ev.Path)
	}
	return out
}

func TestRegistration_Matches(t *testing.T) {
	tests := []struct {
		name      string
		regPath   string
		recursive bool
		event     string
		want      bool
	}{
		{"exact", "/a", false, "/a", true},
		{"child non recursive", "/a", false, "/a/b", false},
		{"child recursive", "/a", true, "/a/b", true},
		{"deep recursive", "/a", true, "/a/b/c", true},
		{"sibling prefix", "/a", true, "/ab", false},
		{"root recursive", "/", true, "/x/y", true},
		{"root non recursive", "/", false, "/x", false},
		{"parent not matched", "/a/b", true, "/a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &Registration{Path: tt.regPath, Recursive: tt.recursive}
			assert.Equal(t, tt.want, reg.Matches(tt.event))
		})
	}
}

func TestRegistry_DeliversInOrder(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.Register("/a", true, rec.handle)

	r.Dispatch(
		Event{Kind: KindCreate, Path: "/a"},
		Event{Kind: KindCreate, Path: "/a/b"},
		Event{Kind: KindModify, Path: "/other"},
		Event{Kind: KindRemove, Path: "/a/b"},
	)
	r.Flush()

	assert.Equal(t, []string{"create /a", "create /a/b", "remove /a/b"}, rec.paths())
}

func TestRegistry_DispatchIsDeferred(t *testing.T) {
	r := NewRegistry()

	release := make(chan struct{})
	blocked := make(chan struct{})
	r.Register("/block", false, func(Event) {
		close(blocked)
		<-release
	})

	rec := &recorder{}
	r.Register("/a", false, rec.handle)

	r.Dispatch(Event{Kind: KindModify, Path: "/block"})
	<-blocked

	// The dispatcher is busy; this event must be queued, not delivered inline
	r.Dispatch(Event{Kind: KindModify, Path: "/a"})
	assert.Empty(t, rec.paths())
	assert.Equal(t, 1, r.Pending())

	close(release)
	r.Flush()
	assert.Equal(t, []string{"modify /a"}, rec.paths())
}

func TestRegistry_UnregisterDropsQueuedEvents(t *testing.T) {
	r := NewRegistry()

	release := make(chan struct{})
	blocked := make(chan struct{})
	r.Register("/block", false, func(Event) {
		close(blocked)
		<-release
	})

	rec := &recorder{}
	reg := r.Register("/a", true, rec.handle)

	r.Dispatch(Event{Kind: KindModify, Path: "/block"})
	<-blocked
	r.Dispatch(Event{Kind: KindCreate, Path: "/a/f"})

	require.True(t, r.Unregister(reg.ID))
	close(release)
	r.Flush()

	assert.Empty(t, rec.paths())
	assert.False(t, r.Unregister(reg.ID))
}

func TestRegistry_HandlerMayUnregisterItself(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}

	var reg *Registration
	reg = r.Register("/a", false, func(ev Event) {
		rec.handle(ev)
		r.Unregister(reg.ID)
	})

	r.Dispatch(Event{Kind: KindModify, Path: "/a"}, Event{Kind: KindModify, Path: "/a"})
	r.Flush()

	assert.Equal(t, []string{"modify /a"}, rec.paths())
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.Register("/a", false, func(Event) { panic("boom") })
	r.Register("/a", false, rec.handle)

	r.Dispatch(Event{Kind: KindCreate, Path: "/a"})
	r.Flush()

	assert.Equal(t, []string{"create /a"}, rec.paths())
}

func TestRegistry_ContextIsForwarded(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{}
	r.Register("/", true, rec.handle)

	r.Dispatch(Event{Kind: KindModify, Path: "/x", Context: "editor"})
	r.Flush()

	require.Len(t, rec.events, 1)
	assert.Equal(t, "editor", rec.events[0].Context)
}

func TestRegistry_NormalizesRegistrationPath(t *testing.T) {
	r := NewRegistry()
	reg := r.Register("file:///a/b/", false, func(Event) {})
	assert.Equal(t, "/a/b", reg.Path)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_FlushWithoutEvents(t *testing.T) {
	r := NewRegistry()
	r.Flush()
	r.Dispatch()
	r.Flush()
	assert.Equal(t, 0, r.Pending())
}

func TestRegistry_LateRegistrationMissesQueuedEvents(t *testing.T) {
	r := NewRegistry()

	release := make(chan struct{})
	blocked := make(chan struct{})
	r.Register("/block", false, func(Event) {
		close(blocked)
		<-release
	})

	r.Dispatch(Event{Kind: KindModify, Path: "/block"})
	<-blocked
	r.Dispatch(Event{Kind: KindCreate, Path: "/old.txt"})

	late := &recorder{}
	r.Register("/", true, late.handle)

	close(release)
	r.Flush()
	assert.Empty(t, late.paths())

	r.Dispatch(Event{Kind: KindCreate, Path: "/new.txt"})
	r.Flush()
	assert.Equal(t, []string{"create /new.txt"}, late.paths())
}

func TestRegistry_RegistrationFromHandlerMissesCurrentEvent(t *testing.T) {
	r := NewRegistry()
	inner := &recorder{}

	registered := false
	r.Register("/a", false, func(Event) {
		if !registered {
			registered = true
			r.Register("/a", false, inner.handle)
		}
	})

	r.Dispatch(Event{Kind: KindCreate, Path: "/a"})
	r.Flush()
	assert.Empty(t, inner.paths())

	r.Dispatch(Event{Kind: KindModify, Path: "/a"})
	r.Flush()
	assert.Equal(t, []string{"modify /a"}, inner.paths())
}
