package bayeux

import (
	"sync"
	"time"

	"github.com/cometd-go/bayeux/internal/logger"
)

// Event listener signatures, spec section 4.1.
type (
	SessionListener        func(session *Session)
	SessionRemovedListener func(session *Session, timeout bool)
	ChannelListener        func(channel *Channel)
	SubscriptionListener   func(session *Session, channel *Channel)
)

const (
	metaHandshake   = "/meta/handshake"
	metaConnect     = "/meta/connect"
	metaSubscribe   = "/meta/subscribe"
	metaUnsubscribe = "/meta/unsubscribe"
	metaDisconnect  = "/meta/disconnect"
)

// Broker owns the channel and session registries and runs the Bayeux
// message pipeline (spec section 4.1). It is the natural aggregate root:
// there is no process-wide state, and extensions/listeners are always
// passed the broker explicitly (spec section 9).
type Broker struct {
	options Options
	policy  Policy

	mu       sync.Mutex
	channels map[string]*Channel
	sessions map[string]*Session
	browsers map[string]*browserGroup

	extensions []Extension

	sessionAdded        []SessionListener
	sessionRemoved      []SessionRemovedListener
	channelAdded        []ChannelListener
	channelRemoved      []ChannelListener
	subscribedListeners []SubscriptionListener
	unsubscribed        []SubscriptionListener

	sweeper *sweeper

	closed bool
}

// browserGroup tracks every session sharing one browser cookie, and how many
// of them currently hold a suspended /meta/connect (capped by
// Options.MaxSessionsPerBrowser).
type browserGroup struct {
	sessions []*Session
	holds    int
}

// NewBroker creates a Broker with opts (merged over DefaultOptions), the
// five built-in meta channels already registered, and its sweeper running.
func NewBroker(opts Options, policy Policy) *Broker {
	b := &Broker{
		options:  opts.withDefaults(),
		policy:   policy,
		channels: make(map[string]*Channel),
		sessions: make(map[string]*Session),
		browsers: make(map[string]*browserGroup),
	}
	for _, name := range []string{metaHandshake, metaConnect, metaSubscribe, metaUnsubscribe, metaDisconnect} {
		b.channels[name] = newChannel(name)
	}
	b.sweeper = startSweeper(b, b.options.SweepPeriod)
	return b
}

// Options returns the broker's effective (defaulted) options.
func (b *Broker) Options() Options { return b.options }

// Close stops the sweeper. It does not forcibly resume held waiters; the
// owning HTTP server is responsible for closing connections (spec section
// 5, "Cancellation").
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.sweeper.stop()
}

// AddExtension registers a server-scoped extension.
func (b *Broker) AddExtension(ext Extension) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extensions = append(b.extensions, ext)
}

func (b *Broker) OnSessionAdded(l SessionListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionAdded = append(b.sessionAdded, l)
}

func (b *Broker) OnSessionRemoved(l SessionRemovedListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionRemoved = append(b.sessionRemoved, l)
}

func (b *Broker) OnChannelAdded(l ChannelListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channelAdded = append(b.channelAdded, l)
}

func (b *Broker) OnChannelRemoved(l ChannelListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channelRemoved = append(b.channelRemoved, l)
}

func (b *Broker) OnSubscribed(l SubscriptionListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribedListeners = append(b.subscribedListeners, l)
}

func (b *Broker) OnUnsubscribed(l SubscriptionListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribed = append(b.unsubscribed, l)
}

// GetSession looks up a registered session by id.
func (b *Broker) GetSession(id string) (*Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[id]
	return s, ok
}

// GetChannel looks up a registered channel by name without creating it.
func (b *Broker) GetChannel(name string) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.channels[name]
	return c, ok
}

// CreateChannel returns the channel named name, creating (and firing
// channelAdded for) it if absent. Policy is not consulted here - only the
// message pipeline's channel resolution step applies canCreate.
func (b *Broker) CreateChannel(name string) *Channel {
	b.mu.Lock()
	c, ok := b.channels[name]
	if ok {
		b.mu.Unlock()
		return c
	}
	c = newChannel(name)
	b.channels[name] = c
	listeners := append([]ChannelListener(nil), b.channelAdded...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(c)
	}
	return c
}

// resolveChannel mirrors CreateChannel but runs canCreate first; ok is false
// if policy denies creation of a not-yet-existing channel.
func (b *Broker) resolveChannel(session *Session, name string, m *Message) (*Channel, bool) {
	b.mu.Lock()
	c, exists := b.channels[name]
	b.mu.Unlock()
	if exists {
		return c, true
	}
	if !validChannelName(name) {
		return nil, false
	}
	if !b.canCreate(session, name, m) {
		return nil, false
	}
	return b.CreateChannel(name), true
}

func (b *Broker) removeChannelLocked(name string) {
	c, ok := b.channels[name]
	if !ok {
		return
	}
	delete(b.channels, name)
	listeners := append([]ChannelListener(nil), b.channelRemoved...)
	go func() {
		for _, l := range listeners {
			l(c)
		}
	}()
}

func (b *Broker) fireSubscribed(session *Session, c *Channel) {
	b.mu.Lock()
	listeners := append([]SubscriptionListener(nil), b.subscribedListeners...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(session, c)
	}
}

func (b *Broker) fireUnsubscribed(session *Session, c *Channel) {
	b.mu.Lock()
	listeners := append([]SubscriptionListener(nil), b.unsubscribed...)
	b.mu.Unlock()
	for _, l := range listeners {
		l(session, c)
	}
}

// addSession registers a newly-handshaken session.
func (b *Broker) addSession(s *Session) {
	b.mu.Lock()
	b.sessions[s.ID()] = s
	listeners := append([]SessionListener(nil), b.sessionAdded...)
	b.mu.Unlock()
	logger.Debug("session added", "session", s.ID())
	for _, l := range listeners {
		l(s)
	}
}

// removeSession unregisters s (idempotent), runs session.markRemoved, sweeps
// any now-empty non-meta channels it was subscribed to, and fires
// sessionRemoved listeners.
func (b *Broker) removeSession(s *Session, timeout bool) {
	b.mu.Lock()
	if _, ok := b.sessions[s.ID()]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.sessions, s.ID())
	browserID := s.getBrowserID()
	group := b.browsers[browserID]
	b.mu.Unlock()

	if group != nil {
		b.mu.Lock()
		for i, gs := range group.sessions {
			if gs.ID() == s.ID() {
				group.sessions = append(group.sessions[:i], group.sessions[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}

	channels := s.markRemoved()
	b.mu.Lock()
	for _, c := range channels {
		if c.sweepable() {
			b.removeChannelLocked(c.Name())
		}
	}
	listeners := append([]SessionRemovedListener(nil), b.sessionRemoved...)
	b.mu.Unlock()

	logger.Debug("session removed", "session", s.ID(), "timeout", timeout)
	for _, l := range listeners {
		l(s, timeout)
	}
}

// effectiveTimeout/effectiveInterval resolve the broker-wide server default,
// honoring any "long-polling.json.timeout"/".interval" Overrides (spec
// section 6).
func (b *Broker) effectiveTimeout() time.Duration {
	return b.options.Overrides.resolve("timeout", b.options.Timeout)
}

func (b *Broker) effectiveInterval() time.Duration {
	return b.options.Overrides.resolve("interval", b.options.Interval)
}

// browserGroupFor returns (creating if absent) the browser group for id.
func (b *Broker) browserGroupFor(id string) *browserGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.browsers[id]
	if !ok {
		g = &browserGroup{}
		b.browsers[id] = g
	}
	return g
}

func (b *Broker) sessionsForBrowser(id string) []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.browsers[id]
	if !ok {
		return nil
	}
	return append([]*Session(nil), g.sessions...)
}

func (b *Broker) addSessionToBrowser(id string, s *Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.browsers[id]
	if !ok {
		g = &browserGroup{}
		b.browsers[id] = g
	}
	g.sessions = append(g.sessions, s)
}

// beginHold reserves one suspended-connect slot for browserID, honoring
// Options.MaxSessionsPerBrowser (-1 unlimited, 0 forbids holding entirely).
// Returns false if the cap is already met.
func (b *Broker) beginHold(browserID string, max int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if max == 0 {
		return false
	}
	g, ok := b.browsers[browserID]
	if !ok {
		g = &browserGroup{}
		b.browsers[browserID] = g
	}
	if max > 0 && g.holds >= max {
		return false
	}
	g.holds++
	return true
}

// endHold releases a slot reserved by beginHold.
func (b *Broker) endHold(browserID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.browsers[browserID]; ok && g.holds > 0 {
		g.holds--
	}
}

// findSession resolves the clientId a non-handshake message carries against
// the sessions sharing browserID, falling back to the global registry (spec
// section 4.5 step 2).
func (b *Broker) findSession(browserID, clientID string) (*Session, bool) {
	for _, s := range b.sessionsForBrowser(browserID) {
		if s.ID() == clientID {
			return s, true
		}
	}
	return b.GetSession(clientID)
}
