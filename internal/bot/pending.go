package bot

import (
	"sync"
	"time"
)

// pendingWishes tracks users who pressed "leave a wish" and whose next
// text message is the wish. Entries expire so a stale prompt does not
// swallow an unrelated message hours later.
type pendingWishes struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[int64]time.Time
	now func() time.Time
}

func newPendingWishes(ttl time.Duration) *pendingWishes {
	return &pendingWishes{ttl: ttl, m: make(map[int64]time.Time), now: time.Now}
}

func (p *pendingWishes) set(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[userID] = p.now().Add(p.ttl)
	p.gc()
}

func (p *pendingWishes) clear(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, userID)
}

// take reports whether userID was waiting and clears the state.
func (p *pendingWishes) take(userID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	exp, ok := p.m[userID]
	if !ok {
		return false
	}
	delete(p.m, userID)
	return p.now().Before(exp)
}

func (p *pendingWishes) gc() {
	now := p.now()
	for id, exp := range p.m {
		if !now.Before(exp) {
			delete(p.m, id)
		}
	}
}
