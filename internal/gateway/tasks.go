package gateway

import (
	"context"
	"sync"
)

// taskRole names the kind of supervised per-connection goroutine.
type taskRole string

const (
	roleHeartbeat taskRole = "heartbeat"
	roleStream    taskRole = "stream"
)

// taskKey identifies one supervised task. Streams carry the request id so
// a single in-flight query can be cancelled without string parsing.
type taskKey struct {
	connID    string
	role      taskRole
	requestID string
}

// supervisor tracks per-connection goroutines so that disconnect can
// cancel exactly the tasks belonging to that connection, and shutdown can
// cancel and wait for all of them.
type supervisor struct {
	base context.Context

	mu    sync.Mutex
	gen   uint64
	tasks map[taskKey]taskEntry
	wg    sync.WaitGroup
}

type taskEntry struct {
	cancel context.CancelFunc
	gen    uint64
}

func newSupervisor(base context.Context) *supervisor {
	return &supervisor{
		base:  base,
		tasks: make(map[taskKey]taskEntry),
	}
}

// start launches fn under a cancellable context registered at key. The
// entry is removed when fn returns; a generation tag keeps a finishing
// task from removing a newer entry registered at the same key.
func (s *supervisor) start(key taskKey, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(s.base)

	s.mu.Lock()
	if prev, ok := s.tasks[key]; ok {
		prev.cancel()
	}
	s.gen++
	gen := s.gen
	s.tasks[key] = taskEntry{cancel: cancel, gen: gen}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			if cur, ok := s.tasks[key]; ok && cur.gen == gen {
				delete(s.tasks, key)
			}
			s.mu.Unlock()
			s.wg.Done()
		}()
		fn(ctx)
	}()
}

// cancelConn cancels every task owned by the connection.
func (s *supervisor) cancelConn(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.tasks {
		if key.connID == connID {
			entry.cancel()
		}
	}
}

// active returns the number of live tasks for a connection.
func (s *supervisor) active(connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key := range s.tasks {
		if key.connID == connID {
			n++
		}
	}
	return n
}

// wait blocks until every supervised task has returned.
func (s *supervisor) wait() {
	s.wg.Wait()
}
