package docstore

import "sync"

// Subscription delivers snapshots for one query until cancelled.
// The channel holds at most one pending snapshot; a newer snapshot replaces an
// undelivered older one, so a slow reader only ever sees the latest state.
type Subscription struct {
	query  Query
	ch     chan Snapshot
	mu     sync.Mutex
	closed bool
	onStop func()
}

func newSubscription(q Query, onStop func()) *Subscription {
	return &Subscription{
		query:  q,
		ch:     make(chan Snapshot, 1),
		onStop: onStop,
	}
}

// C returns the delivery channel. It is closed by Cancel.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Query returns the query this subscription follows.
func (s *Subscription) Query() Query {
	return s.query
}

// Cancel stops delivery and closes the channel. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	if s.onStop != nil {
		s.onStop()
	}
}

// Active reports whether the subscription is still delivering.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *Subscription) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	// only senders hold mu, so after the drain this cannot block
	s.ch <- snap
}
