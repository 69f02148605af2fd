package bayeux

import "encoding/json"

// Message is a single Bayeux protocol message. Only the fields Bayeux 1.0
// recognizes are exposed; any other top-level field a client sends is
// dropped when the message is decoded.
//
// Serialize caches its result: once a Message has been serialized, further
// mutation of its fields is not reflected in the cached form. This mirrors
// the source's "_json" cache, kept here as an explicit field instead of a
// non-enumerable property (see the message.go entry in DESIGN.md).
type Message struct {
	Channel                  string                 `json:"channel"`
	ClientID                 string                 `json:"clientId,omitempty"`
	ID                       string                 `json:"id,omitempty"`
	Data                     interface{}            `json:"data,omitempty"`
	Subscription             interface{}            `json:"subscription,omitempty"`
	Ext                      map[string]interface{} `json:"ext,omitempty"`
	Advice                   *Advice                `json:"advice,omitempty"`
	Successful               *bool                  `json:"successful,omitempty"`
	Error                    string                 `json:"error,omitempty"`
	Version                  string                 `json:"version,omitempty"`
	SupportedConnectionTypes []string               `json:"supportedConnectionTypes,omitempty"`
	ConnectionType           string                 `json:"connectionType,omitempty"`

	// reply is a back-reference from an incoming message to the reply that
	// will be sent for it. It is never serialized.
	reply *Message

	cached []byte
}

// Advice carries out-of-band reconnection hints from server to client.
type Advice struct {
	Reconnect        string `json:"reconnect,omitempty"`
	Timeout          *int   `json:"timeout,omitempty"`
	Interval         *int   `json:"interval,omitempty"`
	MultipleClients  bool   `json:"multiple-clients,omitempty"`
}

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

// SetSuccessful sets the reply's successful flag.
func (m *Message) SetSuccessful(ok bool) { m.Successful = boolPtr(ok) }

// IsSuccessful reports whether the message carries successful=true.
func (m *Message) IsSuccessful() bool { return m.Successful != nil && *m.Successful }

// SetError marks the reply as failed with the given "code::tag" string and
// clears/leaves Successful as false.
func (m *Message) SetError(code string) {
	m.Error = code
	m.SetSuccessful(false)
}

// Reply returns the message's attached reply object, creating a minimal one
// (channel/id only) if none is attached yet.
func (m *Message) Reply() *Message {
	if m.reply == nil {
		m.reply = &Message{Channel: m.Channel, ID: m.ID}
	}
	return m.reply
}

// AttachReply sets the message's reply back-reference explicitly.
func (m *Message) AttachReply(r *Message) { m.reply = r }

// Serialize returns the cached JSON encoding of the message, computing it on
// first call. Later mutation of the message is not reflected in a previously
// cached form.
func (m *Message) Serialize() ([]byte, error) {
	if m.cached != nil {
		return m.cached, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	m.cached = b
	return b, nil
}

// subscriptionList normalizes the Subscription field, which the wire format
// allows to be either a bare string or a list of strings.
func (m *Message) subscriptionList() ([]string, bool) {
	switch v := m.Subscription.(type) {
	case string:
		if v == "" {
			return nil, false
		}
		return []string{v}, true
	case []string:
		if len(v) == 0 {
			return nil, false
		}
		return v, true
	case []interface{}:
		if len(v) == 0 {
			return nil, false
		}
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// decodeMessages parses a Bayeux request body: a JSON array of one or more
// messages.
func decodeMessages(body []byte) ([]*Message, error) {
	var msgs []*Message
	if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
