package resource

import "strconv"

// Handle is an opaque reference to an object in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags the type of object a handle refers to.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindVersionReader
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindVersionReader:
		return "versionReader"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event is a lifecycle notification.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives lifecycle notifications.
type Observer interface {
	OnResourceEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnResourceEvent(e Event) {
	f(e)
}

// Closer is implemented by values that release something when the table
// drops them during Close.
type Closer interface {
	Close() error
}
