package bayeux

import "sync"

// batchQueue is a per-session log of outbound messages tagged with the
// monotonically increasing batch number open when they were queued (spec
// section 4.7). Batches start at 0, so the first /meta/connect closes batch
// 0 and carries ext.ack=0 - spec section 8 scenario 6 is explicit that the
// first connect (client ack=-1) must return ack=0.
type batchQueue struct {
	mu       sync.Mutex
	messages []*Message
	tags     []int
	batch    int
}

func newBatchQueue() *batchQueue {
	return &batchQueue{batch: 0}
}

func (q *batchQueue) store(m *Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, m)
	q.tags = append(q.tags, q.batch)
}

// closeBatch records and returns the batch number in effect, then opens the
// next one. Called exactly once per /meta/connect reply written.
func (q *batchQueue) closeBatch() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	b := q.batch
	q.batch++
	return b
}

// ackUpTo discards every stored message tagged with a batch <= n: the
// client has acknowledged it.
func (q *batchQueue) ackUpTo(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	keepMsgs := q.messages[:0]
	keepTags := q.tags[:0]
	for i, tag := range q.tags {
		if tag > n {
			keepMsgs = append(keepMsgs, q.messages[i])
			keepTags = append(keepTags, tag)
		}
	}
	q.messages = keepMsgs
	q.tags = keepTags
}

// sliceToBatch returns every stored message tagged with a batch <= n, the
// replay set for a /meta/connect reply that closed batch n.
func (q *batchQueue) sliceToBatch(n int) []*Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Message, 0, len(q.messages))
	for i, tag := range q.tags {
		if tag <= n {
			out = append(out, q.messages[i])
		}
	}
	return out
}

func (q *batchQueue) hasUnacked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages) > 0
}

// AckExtension implements the acknowledged-messages extension (spec section
// 4.7): a client opts in by sending ext.ack=true on /meta/handshake; from
// then on its /meta/connect exchanges carry a batch number the server uses
// to replay anything sent since the last acknowledged batch.
type AckExtension struct {
	mu    sync.Mutex
	queue map[string]*batchQueue // sessionID -> this session's batch log
}

// NewAckExtension creates an AckExtension. Register its ServerExtension on a
// Broker to activate it.
func NewAckExtension() *AckExtension {
	return &AckExtension{queue: make(map[string]*batchQueue)}
}

// ServerExtension returns the broker-level Extension that negotiates ack
// support during handshake and attaches the per-session hooks.
func (a *AckExtension) ServerExtension() Extension {
	return Extension{
		Incoming: func(b *Broker, session *Session, m *Message) bool {
			if m.Channel != metaHandshake || session == nil {
				return true
			}
			if !extFlag(m.Ext, "ack") {
				return true
			}
			a.enable(session)
			return true
		},
		Outgoing: func(b *Broker, sender, session *Session, m *Message) bool {
			if m.Channel != metaHandshake || session == nil {
				return true
			}
			a.mu.Lock()
			_, enabled := a.queue[session.ID()]
			a.mu.Unlock()
			if enabled {
				setExtFlag(m, "ack", true)
			}
			return true
		},
	}
}

// enable attaches this session's BatchQueue and session-scoped hooks. Safe
// to call more than once for the same session (idempotent).
func (a *AckExtension) enable(session *Session) {
	a.mu.Lock()
	if _, ok := a.queue[session.ID()]; ok {
		a.mu.Unlock()
		return
	}
	q := newBatchQueue()
	a.queue[session.ID()] = q
	a.mu.Unlock()

	session.setMetaConnectDeliveryOnly(true)
	session.AddExtension(SessionExtension{
		Incoming: func(s *Session, m *Message) bool {
			if m.Channel != metaConnect {
				return true
			}
			if n, ok := extInt(m.Ext, "ack"); ok {
				q.ackUpTo(n)
			}
			if q.hasUnacked() && !s.hasQueued() {
				reply := m.Reply()
				if reply.Advice == nil {
					reply.Advice = &Advice{}
				}
				reply.Advice.Timeout = intPtr(0)
			}
			return true
		},
		Outgoing: func(sender, receiver *Session, m *Message) bool {
			if receiver.ID() != session.ID() {
				// This hook only acts when its owning session is the
				// receiver of the delivery, not the sender of some other
				// session's broadcast.
				return true
			}
			if m.Channel == metaConnect {
				setExtFlag(m, "ack", q.closeBatch())
				return true
			}
			if classify(m.Channel) == kindMeta {
				// Replies to the session's own meta messages are not logged
				// for replay.
				return true
			}
			q.store(m)
			return true
		},
	})
}

// replayFor returns the replay set for a /meta/connect reply that closed
// batch n for session, and whether the session has ack enabled at all.
func (a *AckExtension) replayFor(session *Session, batch int) ([]*Message, bool) {
	a.mu.Lock()
	q, ok := a.queue[session.ID()]
	a.mu.Unlock()
	if !ok {
		return nil, false
	}
	return q.sliceToBatch(batch), true
}

func extFlag(ext map[string]interface{}, key string) bool {
	if ext == nil {
		return false
	}
	b, _ := ext[key].(bool)
	return b
}

func extInt(ext map[string]interface{}, key string) (int, bool) {
	if ext == nil {
		return 0, false
	}
	switch v := ext[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func setExtFlag(m *Message, key string, value interface{}) {
	if m.Ext == nil {
		m.Ext = make(map[string]interface{})
	}
	m.Ext[key] = value
}
