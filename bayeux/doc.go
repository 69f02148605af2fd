// Package bayeux implements the server side of the Bayeux 1.0 publish/subscribe
// protocol carried over HTTP long-polling (a "Comet" push server).
//
// A Broker owns the channel and session registries and runs the message
// pipeline; an HTTPTransport (see router.go, transport.go) adapts that
// pipeline to net/http. The defining behavior of the package is that a
// /meta/connect request is held open (see waiter.go) until either a message
// becomes available for the session or a timeout elapses.
package bayeux
