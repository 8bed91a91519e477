package identity

import (
	"context"
	"sync"
	"time"

	applog "shopfront/internal/log"
)

// subscriber delivers states to fn on its own goroutine. Only the newest
// undelivered state is kept.
type subscriber struct {
	fn      func(State)
	pending chan State
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) push(st State) {
	for {
		select {
		case s.pending <- st:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case st := <-s.pending:
			select {
			case <-s.done:
				return
			default:
			}
			s.fn(st)
		}
	}
}

func (l *Local) Subscribe(sid string, fn func(State)) func() {
	s := &subscriber{fn: fn, pending: make(chan State, 1), done: make(chan struct{})}

	l.mu.Lock()
	set := l.subs[sid]
	if set == nil {
		set = map[*subscriber]struct{}{}
		l.subs[sid] = set
	}
	set[s] = struct{}{}
	// Read the current state while holding mu so a concurrent change is
	// either seen here or delivered afterwards by notify.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	u, err := l.CurrentUser(ctx, sid)
	cancel()
	if err != nil {
		applog.Event(applog.LevelError, "identity.subscribe.state", err, nil)
	}
	s.push(State{User: u})
	l.mu.Unlock()

	go s.run()

	return func() {
		s.once.Do(func() {
			l.mu.Lock()
			delete(l.subs[sid], s)
			if len(l.subs[sid]) == 0 {
				delete(l.subs, sid)
			}
			l.mu.Unlock()
			close(s.done)
		})
	}
}

func (l *Local) notify(sid string, st State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for s := range l.subs[sid] {
		s.push(st)
	}
}
