package bayeux

// process runs one inbound message through the full Bayeux pipeline (spec
// section 4.1, steps 1-9) and returns its reply. A nil session means the
// message's clientId matched no known session: the reply then carries
// 402::session_unknown (plus handshake advice on /meta/handshake and
// /meta/connect).
func (b *Broker) process(session *Session, m *Message) *Message {
	reply := m.Reply()
	reply.Channel = m.Channel

	if m.Channel == "" {
		reply.SetError(errChannelMissing)
		return reply
	}

	if session == nil {
		reply.SetError(errSessionUnknown)
		if m.Channel == metaHandshake || m.Channel == metaConnect {
			reply.Advice = &Advice{Reconnect: "handshake", Interval: intPtr(0)}
		}
		return reply
	}

	session.cancelExpiration(m.Channel == metaConnect)

	b.mu.Lock()
	serverExts := append([]Extension(nil), b.extensions...)
	b.mu.Unlock()

	if !foldIncomingServer(serverExts, b, session, m) {
		return reply
	}

	session.lock()
	sessionExts := append([]SessionExtension(nil), session.extensions...)
	session.unlock()

	if !foldIncomingSession(sessionExts, session, m) {
		return reply
	}

	channel, ok := b.resolveChannel(session, m.Channel, m)
	if !ok {
		reply.SetError(errChannelDenied)
		return reply
	}

	if channel.kind != kindMeta {
		if !b.canPublish(session, channel, m) {
			reply.SetError(errPublishDenied)
			return reply
		}
	}

	b.publishMessage(session, channel, m)

	if reply.Error == "" && reply.Successful == nil {
		reply.SetSuccessful(true)
	}

	b.mu.Lock()
	outExts := append([]Extension(nil), b.extensions...)
	b.mu.Unlock()
	if !foldOutgoingServer(outExts, b, session, session, reply) {
		return reply
	}

	session.lock()
	sessExts := append([]SessionExtension(nil), session.extensions...)
	session.unlock()
	foldOutgoingSession(sessExts, session, session, reply)

	return reply
}

// publishMessage is step 8: notify message listeners on the wildcard chain
// (ancestor-first, vetoable), run outgoing extensions over the broadcast
// path, then either dispatch to the meta handler or fan out to subscribers.
func (b *Broker) publishMessage(session *Session, channel *Channel, m *Message) {
	if !b.notifyListeners(session, channel.Name(), m) {
		m.Reply().SetError(errMessageDeleted)
		return
	}

	b.mu.Lock()
	outExts := append([]Extension(nil), b.extensions...)
	b.mu.Unlock()
	if !foldOutgoingServer(outExts, b, session, session, m) {
		m.Reply().SetError(errMessageDeleted)
		return
	}

	switch channel.kind {
	case kindMeta:
		b.dispatchMeta(session, channel, m)
	case kindService:
		// Directed, not broadcast (spec section 3): listeners already ran
		// above, but service channels never fan a publish out to subscribers.
	default:
		channel.notifySubscribers(session, m)
	}
}

// notifyListeners walks name's wildcard ancestors (ancestor-first) then name
// itself, firing each registered channel's message listeners; the first
// veto stops the walk.
func (b *Broker) notifyListeners(session *Session, name string, m *Message) bool {
	for _, n := range notificationChain(name) {
		c, ok := b.GetChannel(n)
		if !ok {
			continue
		}
		if !c.notifyMessage(session, m) {
			return false
		}
	}
	return true
}
