package session

import "sync"

type notifier struct {
	mu        sync.Mutex
	listeners []Listener
}

func (n *notifier) OnChange(l Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, l)
	n.mu.Unlock()
}

func (n *notifier) publish(s *Session) {
	n.mu.Lock()
	ls := make([]Listener, len(n.listeners))
	copy(ls, n.listeners)
	n.mu.Unlock()

	for _, l := range ls {
		l(s.clone())
	}
}
