package engine

import "sync"

// keyedLocks serializes work per session id and per venture id. The venture
// lock is the single-writer arbitration point for winner settlement; the
// session lock defensively serializes moves on one session. Locks are never
// freed; session/venture cardinality is small and bounded by the database.
type keyedLocks struct {
	rngMu    sync.Mutex
	mu       sync.Mutex
	sessions map[string]*sync.Mutex
	ventures map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		sessions: make(map[string]*sync.Mutex),
		ventures: make(map[string]*sync.Mutex),
	}
}

func (k *keyedLocks) lockFor(m map[string]*sync.Mutex, key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok := m[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	m[key] = l
	return l
}

func (k *keyedLocks) session(id string) *sync.Mutex { return k.lockFor(k.sessions, id) }
func (k *keyedLocks) venture(id string) *sync.Mutex { return k.lockFor(k.ventures, id) }
