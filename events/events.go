// ABOUTME: Lifecycle events emitted after objects are added, updated, deleted, or run manually
// ABOUTME: Defines the Event payload and the fire-and-forget Emitter boundary
package events

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind names what happened to an object.
type Kind string

const (
	KindAdded     Kind = "added"
	KindUpdated   Kind = "updated"
	KindDeleted   Kind = "deleted"
	KindRunManual Kind = "run_manual"
)

// Trigger tells consumers whether a person asked for the event.
type Trigger string

const (
	TriggerAutomatic Trigger = "automatic"
	TriggerManual    Trigger = "manual"
)

// Event is the payload handed to downstream schedulers.
type Event struct {
	ID       ulid.ULID `json:"id"`
	Kind     Kind      `json:"kind"`
	ObjectID int64     `json:"object_id"`
	Active   bool      `json:"active"`
	UserID   int64     `json:"acting_user_id"`
	Trigger  Trigger   `json:"trigger"`
	Time     time.Time `json:"time"`
}

// Emitter receives lifecycle events. Emit must not block on delivery and
// reports nothing back; failures are the emitter's to log.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New builds an event with a fresh ULID and the given timestamp.
func New(kind Kind, objectID int64, active bool, userID int64, trigger Trigger, at time.Time) Event {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(at), entropy)
	entropyMu.Unlock()

	return Event{
		ID:       id,
		Kind:     kind,
		ObjectID: objectID,
		Active:   active,
		UserID:   userID,
		Trigger:  trigger,
		Time:     at.UTC(),
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Emit(context.Context, Event) {}

// Multi fans each event out to several emitters in order.
type Multi []Emitter

func (m Multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		if em != nil {
			em.Emit(ctx, e)
		}
	}
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfKind returns the recorded events of kind k.
func (r *Recorder) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
