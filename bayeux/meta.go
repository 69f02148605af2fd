package bayeux

// dispatchMeta routes a message already resolved to a meta channel to its
// canonical handler, per spec section 4.1 "Meta handlers".
func (b *Broker) dispatchMeta(session *Session, channel *Channel, m *Message) {
	switch m.Channel {
	case metaHandshake:
		b.handleHandshake(session, m)
	case metaConnect:
		b.handleConnect(session, m)
	case metaSubscribe:
		b.handleSubscribe(session, m)
	case metaUnsubscribe:
		b.handleUnsubscribe(session, m)
	case metaDisconnect:
		b.handleDisconnect(session, m)
	}
}

// handleHandshake implements /meta/handshake: on policy success the session
// is marked handshaken and registered; on failure it stays unregistered.
func (b *Broker) handleHandshake(session *Session, m *Message) {
	reply := m.Reply()

	if !b.canHandshake(session, m) {
		reply.SetError(errHandshakeDenied)
		if reply.Advice == nil {
			reply.Advice = &Advice{Reconnect: "none"}
		}
		return
	}

	session.markHandshaken()
	b.addSession(session)

	reply.SetSuccessful(true)
	reply.ClientID = session.ID()
	reply.Version = "1.0"
	reply.SupportedConnectionTypes = []string{"long-polling"}
	reply.Advice = &Advice{
		Reconnect: "retry",
		Timeout:   intPtr(int(b.effectiveTimeout().Milliseconds())),
		Interval:  intPtr(int(b.effectiveInterval().Milliseconds())),
	}
}

// handleConnect implements /meta/connect: records the client-advertised
// advice and always replies successful. Whether the reply's underlying HTTP
// response is held open is decided by the transport after process returns
// (spec section 4.4).
func (b *Broker) handleConnect(session *Session, m *Message) {
	reply := m.Reply()

	timeout, interval := -1, -1
	if m.Advice != nil {
		if m.Advice.Timeout != nil {
			timeout = *m.Advice.Timeout
		}
		if m.Advice.Interval != nil {
			interval = *m.Advice.Interval
		}
	}
	session.setClientAdvice(timeout, interval)

	reply.SetSuccessful(true)
}

// handleSubscribe implements /meta/subscribe: all requested channels must be
// permitted before any subscription commits.
func (b *Broker) handleSubscribe(session *Session, m *Message) {
	reply := m.Reply()

	names, ok := m.subscriptionList()
	if !ok {
		reply.SetError(errSubscriptionMissing)
		return
	}

	channels := make([]*Channel, 0, len(names))
	for _, name := range names {
		c, ok := b.resolveChannel(session, name, m)
		if !ok || !b.canSubscribe(session, c, m) {
			reply.SetError(errSubscribeDenied)
			return
		}
		channels = append(channels, c)
	}

	for _, c := range channels {
		if !c.subscribe(session) {
			reply.SetError(errSubscribeFailed)
			return
		}
		b.fireSubscribed(session, c)
	}

	reply.SetSuccessful(true)
	reply.Subscription = m.Subscription
}

// handleUnsubscribe implements /meta/unsubscribe: unknown channels are
// silently skipped (still successful). Symmetric with handleSubscribe's
// commit-time failure, a session that never handshook can't have a real
// subscription to remove and fails with 403::unsubscribe_failed.
func (b *Broker) handleUnsubscribe(session *Session, m *Message) {
	reply := m.Reply()

	if !session.Handshaken() {
		reply.SetError(errUnsubscribeFailed)
		return
	}

	names, ok := m.subscriptionList()
	if !ok {
		reply.SetError(errSubscriptionMissing)
		return
	}

	for _, name := range names {
		c, ok := b.GetChannel(name)
		if !ok {
			continue
		}
		c.unsubscribe(session)
		b.fireUnsubscribed(session, c)
		if c.sweepable() {
			b.mu.Lock()
			b.removeChannelLocked(c.Name())
			b.mu.Unlock()
		}
	}

	reply.SetSuccessful(true)
	reply.Subscription = m.Subscription
}

// handleDisconnect implements /meta/disconnect: removes the session
// (timeout=false) then flushes any held waiter so the client's pending
// connect returns immediately instead of waiting out its timeout.
func (b *Broker) handleDisconnect(session *Session, m *Message) {
	reply := m.Reply()
	reply.SetSuccessful(true)

	b.removeSession(session, false)

	if w := session.currentWaiter(); w != nil {
		w.resumeWithMessage()
	}
}
