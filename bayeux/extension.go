package bayeux

// Extension is a server-scoped hook, registered on a Broker via
// AddExtension. Both hooks are optional; a nil hook is treated as
// "continue=true".
type Extension struct {
	// Incoming runs for every message entering the pipeline, before the
	// canonical channel handler. Returning false vetoes the message (sets
	// 404::message_deleted on its reply) and stops the incoming chain.
	Incoming func(broker *Broker, session *Session, message *Message) bool
	// Outgoing runs for every reply/broadcast message leaving the pipeline,
	// in reverse registration order relative to Incoming.
	Outgoing func(broker *Broker, sender *Session, session *Session, message *Message) bool
}

// SessionExtension is the per-session analogue of Extension, registered via
// Session.AddExtension. Panics raised from Incoming are caught and treated
// as continue=true (spec section 9's documented asymmetry: session-incoming
// failures never drop a user's message, but server-incoming failures do
// propagate - see foldIncomingServer).
type SessionExtension struct {
	Incoming func(session *Session, message *Message) bool
	Outgoing func(sender *Session, session *Session, message *Message) bool
}

// foldIncomingServer runs server-level extensions over m in registration
// order, stopping (and marking m's reply 404::message_deleted) at the first
// veto. Extension panics propagate to the caller.
func foldIncomingServer(exts []Extension, broker *Broker, session *Session, m *Message) bool {
	for _, ext := range exts {
		if ext.Incoming == nil {
			continue
		}
		if !ext.Incoming(broker, session, m) {
			m.Reply().SetError(errMessageDeleted)
			return false
		}
	}
	return true
}

// foldIncomingSession runs a session's own extensions over m, catching any
// panic from a hook and treating it as continue=true.
func foldIncomingSession(exts []SessionExtension, session *Session, m *Message) (cont bool) {
	cont = true
	for _, ext := range exts {
		if ext.Incoming == nil {
			continue
		}
		if !callIncomingSafely(ext.Incoming, session, m) {
			m.Reply().SetError(errMessageDeleted)
			return false
		}
	}
	return true
}

func callIncomingSafely(fn func(*Session, *Message) bool, session *Session, m *Message) (result bool) {
	defer func() {
		if recover() != nil {
			result = true
		}
	}()
	return fn(session, m)
}

// foldOutgoingServer runs server-level outgoing extensions in reverse
// registration order (LIFO relative to incoming), stopping at the first
// veto. Used both for the broadcast path and for building a reply.
func foldOutgoingServer(exts []Extension, broker *Broker, sender, session *Session, m *Message) bool {
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		if ext.Outgoing == nil {
			continue
		}
		if !ext.Outgoing(broker, sender, session, m) {
			return false
		}
	}
	return true
}

// foldOutgoingSession runs a session's outgoing extensions in reverse
// registration order.
func foldOutgoingSession(exts []SessionExtension, sender, session *Session, m *Message) bool {
	for i := len(exts) - 1; i >= 0; i-- {
		ext := exts[i]
		if ext.Outgoing == nil {
			continue
		}
		if !ext.Outgoing(sender, session, m) {
			return false
		}
	}
	return true
}
