package bayeux

// This package defines no Go error values. Bayeux protocol-level failures
// are never returned as Go errors - they are carried as "code::tag" strings in a
// message's Error field and travel back to the client as an ordinary
// (HTTP 200) reply, per spec. A malformed channel name is one such failure:
// resolveChannel treats it as channel creation denied (403::channel_denied),
// not a Go error - see channel_name.go and broker.go.

// Bayeux wire error codes, spec section 6.
const (
	errChannelMissing      = "400::channel_missing"
	errSessionUnknown      = "402::session_unknown"
	errHandshakeDenied     = "403::handshake_denied"
	errChannelDenied       = "403::channel_denied"
	errPublishDenied       = "403::publish_denied"
	errSubscribeDenied     = "403::subscribe_denied"
	errSubscribeFailed     = "403::subscribe_failed"
	errUnsubscribeFailed   = "403::unsubscribe_failed"
	errSubscriptionMissing = "403::subscription_missing"
	errMessageDeleted      = "404::message_deleted"
)
