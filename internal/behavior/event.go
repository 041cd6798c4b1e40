package behavior

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// EventID identifies an event. It is derived from the event name with
// [HashEventName], so identifiers are stable across processes.
type EventID uint32

// HashEventName returns the identifier for an event name. Names are compared
// case-insensitively.
func HashEventName(name string) EventID {
	return EventID(crc32.ChecksumIEEE([]byte(strings.ToLower(name))))
}

// Event is an externally raised notification routed to one entity.
type Event struct {
	ID EventID
	// Name is informational, used by logs and debug output.
	Name    string
	Payload any
}

// NewEvent constructs an Event, hashing name.
func NewEvent(name string) Event {
	return Event{ID: HashEventName(name), Name: name}
}

// NewEventWithPayload constructs an Event carrying payload.
func NewEventWithPayload(name string, payload any) Event {
	ev := NewEvent(name)
	ev.Payload = payload
	return ev
}

func (e Event) String() string {
	if e.Name == "" {
		return fmt.Sprintf("event#%08x", uint32(e.ID))
	}
	return e.Name
}
