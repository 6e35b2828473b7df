// Package event is the widget's outbound notification channel. Handlers are
// registered explicitly against event names (or against everything via the
// catch-all); nothing is ever resolved from a string at dispatch time.
package event

import (
	"sync"

	"calwidget/internal/model"
)

// Name identifies an event channel.
type Name string

const (
	Init            Name = "init"
	NavigateBack    Name = "navigate-back"
	NavigateForward Name = "navigate-forward"
	View            Name = "view"
	BeforeLoad      Name = "before-load"
	AfterLoad       Name = "after-load"
	Add             Name = "add"
	Edit            Name = "edit"
	Delete          Name = "delete"
	ShowInfoWindow  Name = "show-info-window"
	HideInfoWindow  Name = "hide-info-window"
)

// Payload carries the context of an event. Fields that do not apply to a
// given event stay at their zero value.
type Payload struct {
	InstanceID  string
	View        string
	Date        model.Date
	OldDate     model.Date
	Appointment *model.Normalized
	Data        any
}

// Handler receives one dispatched event.
type Handler func(name Name, p Payload)

// Emitter fans events out to registered handlers. Dispatch is synchronous
// and in registration order; a handler must not block.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
	catchAll []Handler
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[Name][]Handler)}
}

// On registers h for a single event name.
func (e *Emitter) On(name Name, h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.handlers[name] = append(e.handlers[name], h)
	e.mu.Unlock()
}

// OnAny registers h for every event name.
func (e *Emitter) OnAny(h Handler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	e.catchAll = append(e.catchAll, h)
	e.mu.Unlock()
}

// Emit dispatches the event to its named handlers, then to the catch-all.
func (e *Emitter) Emit(name Name, p Payload) {
	e.mu.RLock()
	named := e.handlers[name]
	all := e.catchAll
	e.mu.RUnlock()

	for _, h := range named {
		h(name, p)
	}
	for _, h := range all {
		h(name, p)
	}
}
