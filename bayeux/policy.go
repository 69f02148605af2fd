package bayeux

// Policy is the pluggable security/authorization hook set described in spec
// section 4.1. A nil Policy, or a Policy that embeds BasePolicy and leaves a
// method untouched, means "permitted" for that check.
type Policy interface {
	CanHandshake(broker *Broker, session *Session, message *Message) bool
	CanCreate(broker *Broker, session *Session, channelName string, message *Message) bool
	CanSubscribe(broker *Broker, session *Session, channel *Channel, message *Message) bool
	CanPublish(broker *Broker, session *Session, channel *Channel, message *Message) bool
}

// BasePolicy permits everything; embed it in a custom Policy and override
// only the checks you need, mirroring the source's "a missing method means
// permitted" contract without relying on Go's lack of optional methods.
type BasePolicy struct{}

func (BasePolicy) CanHandshake(*Broker, *Session, *Message) bool             { return true }
func (BasePolicy) CanCreate(*Broker, *Session, string, *Message) bool        { return true }
func (BasePolicy) CanSubscribe(*Broker, *Session, *Channel, *Message) bool   { return true }
func (BasePolicy) CanPublish(*Broker, *Session, *Channel, *Message) bool     { return true }

func (b *Broker) canHandshake(session *Session, m *Message) bool {
	if b.policy == nil {
		return true
	}
	return b.policy.CanHandshake(b, session, m)
}

func (b *Broker) canCreate(session *Session, name string, m *Message) bool {
	if b.policy == nil {
		return true
	}
	return b.policy.CanCreate(b, session, name, m)
}

func (b *Broker) canSubscribe(session *Session, c *Channel, m *Message) bool {
	if b.policy == nil {
		return true
	}
	return b.policy.CanSubscribe(b, session, c, m)
}

func (b *Broker) canPublish(session *Session, c *Channel, m *Message) bool {
	if b.policy == nil {
		return true
	}
	return b.policy.CanPublish(b, session, c, m)
}
