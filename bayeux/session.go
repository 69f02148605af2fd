package bayeux

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Session is per-client Bayeux state: handshake flag, outbound queue,
// client-advertised timeouts, batch depth, expiration deadline, and any
// attached long-poll waiter. All mutation is serialized under mux, mirroring
// the teacher's *Session.mux discipline (v3/sockjs/session.go).
type Session struct {
	mux sync.Mutex

	id         string
	handshaken bool

	queue []*Message

	subscriptions map[string]*Channel

	extensions []SessionExtension

	batchDepth int

	clientTimeout  int // ms; -1 = use server default
	clientInterval int

	scheduleTime int64 // ms, monotonic
	expireTime   int64 // ms, monotonic; 0 = not subject to sweep

	waiter *LongPollWaiter

	browserID string

	// metaConnectDeliveryOnly, set by the ack extension, suppresses queue
	// flush on any response that isn't a /meta/connect.
	metaConnectDeliveryOnly bool

	removed bool
}

func newSessionID() string {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand failing is unrecoverable
	}
	return hex.EncodeToString(buf)
}

func newSession() *Session {
	return &Session{
		id:             newSessionID(),
		subscriptions:  make(map[string]*Channel),
		clientTimeout:  -1,
		clientInterval: -1,
	}
}

// ID returns the session's 40-hex-character identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) lock()   { s.mux.Lock() }
func (s *Session) unlock() { s.mux.Unlock() }

// Handshaken reports whether /meta/handshake has completed for this session.
func (s *Session) Handshaken() bool {
	s.lock()
	defer s.unlock()
	return s.handshaken
}

// AddExtension registers a session-scoped extension, appended to the list
// (incoming order = registration order, outgoing order = reverse).
func (s *Session) AddExtension(ext SessionExtension) {
	s.lock()
	defer s.unlock()
	s.extensions = append(s.extensions, ext)
}

// calculateTimeout returns the client-advertised timeout if non-negative,
// else serverDefault. Mirrors spec section 4.3.
func (s *Session) calculateTimeout(serverDefault time.Duration) time.Duration {
	s.lock()
	defer s.unlock()
	if s.clientTimeout >= 0 {
		return time.Duration(s.clientTimeout) * time.Millisecond
	}
	return serverDefault
}

// calculateInterval is the interval analogue of calculateTimeout.
func (s *Session) calculateInterval(serverDefault time.Duration) time.Duration {
	s.lock()
	defer s.unlock()
	if s.clientInterval >= 0 {
		return time.Duration(s.clientInterval) * time.Millisecond
	}
	return serverDefault
}

func nowMillis() int64 { return time.Now().UnixMilli() }

// scheduleExpiration arms the sweep deadline: scheduleTime=now,
// expireTime=now+interval+maxInterval. Called by the transport when a
// response finishes, per spec section 4.5 step 6.
func (s *Session) scheduleExpiration(interval, maxInterval time.Duration) {
	s.lock()
	defer s.unlock()
	now := nowMillis()
	s.scheduleTime = now
	s.expireTime = now + interval.Milliseconds() + maxInterval.Milliseconds()
}

// cancelExpiration is called at the top of message processing so an in-flight
// request is never reaped mid-flight. For a /meta/connect it zeroes
// expireTime (no sweep while the connect is held or in flight); for any
// other message it extends expireTime by however long this request has
// already been in flight, so ordinary traffic never leaves a session
// permanently unsweepable (spec section 9, Open Question #2).
func (s *Session) cancelExpiration(isMetaConnect bool) {
	s.lock()
	defer s.unlock()
	if isMetaConnect {
		s.expireTime = 0
		return
	}
	if s.expireTime == 0 {
		return
	}
	now := nowMillis()
	elapsed := now - s.scheduleTime
	if elapsed > 0 {
		s.expireTime += elapsed
	}
}

// expired reports whether the session should be reaped by the sweeper.
func (s *Session) expired(now int64) bool {
	s.lock()
	defer s.unlock()
	return s.expireTime != 0 && now > s.expireTime
}

// deliver runs the sender's session outgoing extensions, then the receiver's
// (this session's) outgoing extensions, and if the message survives both,
// serializes and enqueues it. This double pass is intentional - see spec
// section 9, Open Question #1 - and DESIGN.md.
func (s *Session) deliver(sender *Session, m *Message) {
	if sender != nil {
		sender.lock()
		senderExts := sender.extensions
		sender.unlock()
		if !foldOutgoingSession(senderExts, sender, s, m) {
			return
		}
	}

	s.lock()
	receiverExts := s.extensions
	s.unlock()
	if !foldOutgoingSession(receiverExts, sender, s, m) {
		return
	}

	if _, err := m.Serialize(); err != nil {
		return
	}

	s.lock()
	defer s.unlock()
	s.queue = append(s.queue, m)
	if s.batchDepth == 0 {
		s.flushLocked()
	}
}

// batch increments batchDepth, runs fn, decrements it, and flushes if the
// depth returns to zero and the queue is non-empty - whether fn returned
// normally or panicked (spec section 8's round-trip law).
func (s *Session) batch(fn func()) {
	s.lock()
	s.batchDepth++
	s.unlock()
	defer func() {
		s.lock()
		s.batchDepth--
		flush := s.batchDepth == 0 && len(s.queue) > 0
		s.unlock()
		if flush {
			s.lock()
			s.flushLocked()
			s.unlock()
		}
	}()
	fn()
}

// flushLocked resumes a held waiter with the current queue, if any. Callers
// must hold s.mux.
func (s *Session) flushLocked() {
	if s.waiter != nil {
		w := s.waiter
		go w.resumeWithMessage()
	}
}

// drainQueue empties and returns the session's outbound queue. Called by the
// transport when assembling a response.
func (s *Session) drainQueue() []*Message {
	s.lock()
	defer s.unlock()
	q := s.queue
	s.queue = nil
	return q
}

// hasQueued reports whether any message is currently waiting for delivery.
func (s *Session) hasQueued() bool {
	s.lock()
	defer s.unlock()
	return len(s.queue) > 0
}

// eligibleForHold reports whether this session currently has no queued
// messages or is mid-batch - one of the conditions the LongPollWaiter
// suspension decision requires (spec section 4.4).
func (s *Session) eligibleForHold() bool {
	s.lock()
	defer s.unlock()
	return len(s.queue) == 0 || s.batchDepth > 0
}

// attachWaiter installs w as this session's held /meta/connect waiter,
// returning any waiter that was previously attached (to be cancelled by the
// caller as a duplicate-connect preemption).
func (s *Session) attachWaiter(w *LongPollWaiter) *LongPollWaiter {
	s.lock()
	defer s.unlock()
	prev := s.waiter
	s.waiter = w
	return prev
}

// detachWaiter clears the session's waiter pointer iff it still points at w
// (idempotency guard against a resume/expire race).
func (s *Session) detachWaiter(w *LongPollWaiter) {
	s.lock()
	defer s.unlock()
	if s.waiter == w {
		s.waiter = nil
	}
}

func (s *Session) currentWaiter() *LongPollWaiter {
	s.lock()
	defer s.unlock()
	return s.waiter
}

// subscribedChannels returns a snapshot of the session's subscriptions, safe
// to range over while unsubscribing (spec section 4.3 "Removal").
func (s *Session) subscribedChannels() []*Channel {
	s.lock()
	defer s.unlock()
	out := make([]*Channel, 0, len(s.subscriptions))
	for _, c := range s.subscriptions {
		out = append(out, c)
	}
	return out
}

func (s *Session) addSubscription(c *Channel) {
	s.lock()
	defer s.unlock()
	s.subscriptions[c.name] = c
}

func (s *Session) removeSubscription(c *Channel) {
	s.lock()
	defer s.unlock()
	delete(s.subscriptions, c.name)
}

func (s *Session) isSubscribed(name string) bool {
	s.lock()
	defer s.unlock()
	_, ok := s.subscriptions[name]
	return ok
}

// setClientAdvice records the timeout/interval advertised by the client in
// its /meta/connect advice; -1 means "not advertised, use server default".
func (s *Session) setClientAdvice(timeout, interval int) {
	s.lock()
	defer s.unlock()
	s.clientTimeout = timeout
	s.clientInterval = interval
}

func (s *Session) setBrowserID(id string) {
	s.lock()
	defer s.unlock()
	s.browserID = id
}

func (s *Session) getBrowserID() string {
	s.lock()
	defer s.unlock()
	return s.browserID
}

func (s *Session) setMetaConnectDeliveryOnly(v bool) {
	s.lock()
	defer s.unlock()
	s.metaConnectDeliveryOnly = v
}

func (s *Session) isMetaConnectDeliveryOnly() bool {
	s.lock()
	defer s.unlock()
	return s.metaConnectDeliveryOnly
}

func (s *Session) markHandshaken() {
	s.lock()
	defer s.unlock()
	s.handshaken = true
}

// markRemoved clears handshaken, unsubscribes from every channel (snapshot
// first, per spec section 4.3), and marks the session removed. It never
// fires broker-level listeners itself; Broker.removeSession does that after
// this returns.
func (s *Session) markRemoved() []*Channel {
	s.lock()
	s.handshaken = false
	s.removed = true
	s.unlock()

	channels := s.subscribedChannels()
	for _, c := range channels {
		c.unsubscribe(s)
	}
	return channels
}

func (s *Session) isRemoved() bool {
	s.lock()
	defer s.unlock()
	return s.removed
}
