package bayeux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldIncomingServer_VetoStops(t *testing.T) {
	var calls []int
	exts := []Extension{
		{Incoming: func(*Broker, *Session, *Message) bool { calls = append(calls, 1); return true }},
		{Incoming: func(*Broker, *Session, *Message) bool { calls = append(calls, 2); return false }},
		{Incoming: func(*Broker, *Session, *Message) bool { calls = append(calls, 3); return true }},
	}
	m := &Message{Channel: "/foo"}
	ok := foldIncomingServer(exts, nil, nil, m)
	assert.False(t, ok)
	assert.Equal(t, []int{1, 2}, calls)
	assert.Equal(t, errMessageDeleted, m.Reply().Error)
}

func TestFoldIncomingServer_PanicPropagates(t *testing.T) {
	exts := []Extension{
		{Incoming: func(*Broker, *Session, *Message) bool { panic("boom") }},
	}
	m := &Message{Channel: "/foo"}
	assert.Panics(t, func() {
		foldIncomingServer(exts, nil, nil, m)
	})
}

func TestFoldIncomingSession_PanicCaughtAsContinue(t *testing.T) {
	var ranNext bool
	exts := []SessionExtension{
		{Incoming: func(*Session, *Message) bool { panic("boom") }},
		{Incoming: func(*Session, *Message) bool { ranNext = true; return true }},
	}
	m := &Message{Channel: "/foo"}
	ok := foldIncomingSession(exts, nil, m)
	assert.True(t, ok, "a panicking session extension must not veto the message")
	assert.True(t, ranNext)
}

func TestFoldOutgoing_ReverseOrder(t *testing.T) {
	var order []int
	exts := []Extension{
		{Outgoing: func(*Broker, *Session, *Session, *Message) bool { order = append(order, 1); return true }},
		{Outgoing: func(*Broker, *Session, *Session, *Message) bool { order = append(order, 2); return true }},
	}
	m := &Message{Channel: "/foo"}
	ok := foldOutgoingServer(exts, nil, nil, nil, m)
	assert.True(t, ok)
	assert.Equal(t, []int{2, 1}, order)
}

func TestExtensionChain_SessionVsServerPanic(t *testing.T) {
	// Session-incoming panics are swallowed (continue=true); server-incoming
	// panics propagate. This asymmetry is intentional (spec section 9).
	sessExts := []SessionExtension{{Incoming: func(*Session, *Message) bool { panic("session boom") }}}
	m1 := &Message{Channel: "/foo"}
	assert.NotPanics(t, func() {
		ok := foldIncomingSession(sessExts, nil, m1)
		assert.True(t, ok)
	})

	serverExts := []Extension{{Incoming: func(*Broker, *Session, *Message) bool { panic("server boom") }}}
	m2 := &Message{Channel: "/foo"}
	assert.Panics(t, func() {
		foldIncomingServer(serverExts, nil, nil, m2)
	})
}
