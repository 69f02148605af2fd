package bayeux

import "time"

// sweeper periodically reclaims expired sessions and idle channels (spec
// section 4.6), grounded on the teacher's background-goroutine-over-channel
// idiom (sockjs/session.go's NewSessions), generalized to a ticker loop.
type sweeper struct {
	stopCh chan struct{}
	done   chan struct{}
}

func startSweeper(b *Broker, period time.Duration) *sweeper {
	s := &sweeper{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(b, period)
	return s
}

func (s *sweeper) run(b *Broker, period time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (s *sweeper) stop() {
	select {
	case <-s.stopCh:
		// already stopped
	default:
		close(s.stopCh)
	}
	<-s.done
}

// sweep runs one pass: reclaim expired sessions, then remove any non-meta
// channel left with no subscribers and no listeners.
func (b *Broker) sweep() {
	now := nowMillis()

	b.mu.Lock()
	sessions := make([]*Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	for _, s := range sessions {
		if !s.expired(now) {
			continue
		}
		if w := s.currentWaiter(); w != nil {
			w.cancelTransportError()
		}
		b.removeSession(s, true)
	}

	b.mu.Lock()
	var toRemove []string
	for name, c := range b.channels {
		if c.sweepable() {
			toRemove = append(toRemove, name)
		}
	}
	for _, name := range toRemove {
		b.removeChannelLocked(name)
	}
	b.mu.Unlock()
}
