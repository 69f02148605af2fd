package bayeux

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cometd-go/bayeux/internal/logger"
)

// HTTPTransport is the Bayeux long-polling HTTP entrypoint (spec section
// 4.5), grounded on the teacher's context/handler split
// (sockjs/handler.go's context.wrap and xhr.go's per-request receiver) but
// collapsed to plain net/http since there is exactly one wire format here,
// not sockjs' dozen transport variants.
type HTTPTransport struct {
	broker *Broker
	ack    *AckExtension // optional; nil if the ack extension isn't registered
}

// NewHTTPTransport builds a transport bound to broker. ack may be nil.
func NewHTTPTransport(broker *Broker, ack *AckExtension) *HTTPTransport {
	return &HTTPTransport{broker: broker, ack: ack}
}

func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "bayeux: POST required", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		http.Error(w, "bayeux: error reading body", http.StatusBadRequest)
		return
	}

	messages, err := decodeMessages(body)
	if err != nil || len(messages) == 0 {
		http.Error(w, "bayeux: malformed request body", http.StatusBadRequest)
		return
	}

	first := messages[0]
	if first.Channel == metaHandshake && len(messages) != 1 {
		http.Error(w, "bayeux: protocol violation, handshake must be the only message", http.StatusBadRequest)
		return
	}

	opts := t.broker.Options()
	browserID, hadCookie := t.readBrowserID(r, opts)

	session, sessionOK := t.selectSession(first, browserID)
	if !sessionOK {
		session = nil
	}

	replies := make([]*Message, len(messages))
	sendQueue := make([]bool, len(messages))
	connectIdx := -1

	fold := func() {
		for i, m := range messages {
			reply := t.broker.process(session, m)
			replies[i] = reply

			switch m.Channel {
			case metaHandshake:
				sendQueue[i] = false
				if reply.IsSuccessful() {
					t.attachSession(session, browserID)
				}
			case metaConnect:
				sendQueue[i] = true
				connectIdx = i
			default:
				sendQueue[i] = session == nil || !session.isMetaConnectDeliveryOnly()
			}
		}
	}

	if first.Channel != metaConnect && session != nil {
		session.batch(fold)
	} else {
		fold()
	}

	var preempted *waiterResult
	if connectIdx != -1 && session != nil && replies[connectIdx].IsSuccessful() {
		preempted = t.holdConnect(r, session, replies[connectIdx], browserID, opts, len(messages) == 1)
	}

	if preempted != nil {
		w.WriteHeader(preempted.httpStatus)
		return
	}

	shouldSend := false
	for _, ok := range sendQueue {
		shouldSend = shouldSend || ok
	}

	var toSend []*Message
	if shouldSend && session != nil {
		toSend = session.drainQueue()
		if connectIdx != -1 && t.ack != nil {
			if batch, ok := extInt(replies[connectIdx].Ext, "ack"); ok {
				if replay, ok := t.ack.replayFor(session, batch); ok {
					toSend = replay
				}
			}
		}
	}

	if session != nil {
		if !hadCookie {
			writeBrowserCookie(w, opts, browserID)
		}
		session.scheduleExpiration(t.broker.effectiveInterval(), opts.MaxInterval)
	}

	out := make([]*Message, 0, len(toSend)+len(replies))
	out = append(out, toSend...)
	out = append(out, replies...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(out); err != nil {
		logger.Error("bayeux: error writing response", "error", err)
	}
}

// readBrowserID returns the browser id carried by the request's cookie, or a
// freshly generated one if absent.
func (t *HTTPTransport) readBrowserID(r *http.Request, opts Options) (id string, hadCookie bool) {
	c, err := r.Cookie(opts.BrowserCookieName)
	if err != nil || c.Value == "" {
		return newSessionID(), false
	}
	return c.Value, true
}

func writeBrowserCookie(w http.ResponseWriter, opts Options, browserID string) {
	cookie := &http.Cookie{
		Name:     opts.BrowserCookieName,
		Value:    browserID,
		Path:     "/",
		HttpOnly: opts.BrowserCookieHTTPOnly,
		Secure:   opts.BrowserCookieSecure,
	}
	switch opts.BrowserCookieSameSite {
	case SameSiteLax:
		cookie.SameSite = http.SameSiteLaxMode
	case SameSiteStrict:
		cookie.SameSite = http.SameSiteStrictMode
	case SameSiteNone:
		cookie.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, cookie)
}

// selectSession picks the session for the first message of the request: a
// fresh, not-yet-registered one for a handshake, or the browser's matching
// clientId session otherwise (spec section 4.5 step 2).
func (t *HTTPTransport) selectSession(first *Message, browserID string) (*Session, bool) {
	if first.Channel == metaHandshake {
		s := newSession()
		s.setBrowserID(browserID)
		return s, true
	}
	return t.broker.findSession(browserID, first.ClientID)
}

// attachSession registers a freshly handshaken session with its browser
// group. The session is already registered in the broker by this point
// (Broker.handleHandshake did that); this only wires the browser-id index
// the transport needs for subsequent requests.
func (t *HTTPTransport) attachSession(session *Session, browserID string) {
	t.broker.addSessionToBrowser(browserID, session)
}

// holdConnect implements the LongPollWaiter suspension decision (spec
// section 4.4) for a successful /meta/connect reply, blocking until the
// waiter resolves (or returning immediately if suspension doesn't apply).
// A non-nil result means this request's own held connect was preempted by a
// later connect for the same session, and the caller must finish this
// request with the result's HTTP status and no body.
func (t *HTTPTransport) holdConnect(r *http.Request, session *Session, reply *Message, browserID string, opts Options, soleMessage bool) *waiterResult {
	timeout := session.calculateTimeout(t.broker.effectiveTimeout())

	// A session extension (the ack extension, when it has unacknowledged
	// messages outstanding but nothing currently queued) may force an
	// immediate return by setting the reply's advice timeout to 0 - spec
	// section 4.7's "the server returns immediately with the replay".
	if reply.Advice != nil && reply.Advice.Timeout != nil && *reply.Advice.Timeout == 0 {
		timeout = 0
	}

	if !soleMessage || !session.eligibleForHold() || timeout <= 0 {
		return nil
	}

	// A session can only ever hold one waiter at a time, so a duplicate
	// connect for a session that's already holding is a replacement, not an
	// additional hold - it must not be charged against the browser's cap a
	// second time (spec section 4.4's duplicate-connect path is a hand-off,
	// not a net-new suspension).
	duplicate := session.currentWaiter() != nil

	if !duplicate && !t.broker.beginHold(browserID, opts.MaxSessionsPerBrowser) {
		if reply.Advice == nil {
			reply.Advice = &Advice{}
		}
		reply.Advice.MultipleClients = true
		if opts.MultiSessionInterval > 0 {
			reply.Advice.Reconnect = "retry"
			reply.Advice.Interval = intPtr(int(opts.MultiSessionInterval.Milliseconds()))
		} else {
			reply.SetSuccessful(false)
			reply.Advice.Reconnect = "none"
		}
		return nil
	}

	done := make(chan waiterResult, 1)
	waiter := newLongPollWaiter(session, timeout, func(res waiterResult) {
		done <- res
	})

	if prev := session.attachWaiter(waiter); prev != nil {
		prev.cancelDuplicate(opts.DuplicateMetaConnectHTTPResponseCode)
	}

	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		<-ctx.Done()
		// No-op once the waiter has already resolved; catches the case
		// where the client drops the connection while held (resume path 4).
		waiter.cancelTransportError()
	}()

	res := <-done
	cancel()
	if !duplicate {
		t.broker.endHold(browserID)
	}

	if res.preempted {
		return &res
	}
	return nil
}
