package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDispatchesInRegistrationOrder(t *testing.T) {
	e := NewEmitter()

	var got []string
	e.On(View, func(name Name, p Payload) { got = append(got, "first") })
	e.On(View, func(name Name, p Payload) { got = append(got, "second") })
	e.On(Init, func(name Name, p Payload) { got = append(got, "other") })

	e.Emit(View, Payload{InstanceID: "i1"})
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestCatchAllRunsAfterNamedHandlers(t *testing.T) {
	e := NewEmitter()

	var got []string
	e.OnAny(func(name Name, p Payload) { got = append(got, "any:"+string(name)) })
	e.On(BeforeLoad, func(name Name, p Payload) { got = append(got, "named") })

	e.Emit(BeforeLoad, Payload{})
	e.Emit(AfterLoad, Payload{})
	assert.Equal(t, []string{"named", "any:before-load", "any:after-load"}, got)
}

func TestEmitPassesPayload(t *testing.T) {
	e := NewEmitter()

	var seen Payload
	e.On(NavigateForward, func(name Name, p Payload) { seen = p })

	p := Payload{InstanceID: "i1", View: "month"}
	e.Emit(NavigateForward, p)
	require.Equal(t, p, seen)
}

func TestNilHandlerIsIgnored(t *testing.T) {
	e := NewEmitter()
	e.On(View, nil)
	e.OnAny(nil)

	// Must not panic.
	e.Emit(View, Payload{})
}

func TestEmitWithoutHandlersIsSafe(t *testing.T) {
	e := NewEmitter()
	e.Emit(Delete, Payload{})
}
