package aranet

import "sync"

// Latest holds the most recent successful reading. One writer, any number
// of readers; the lock is only held while copying a Reading in or out.
type Latest struct {
	mu      sync.RWMutex
	reading Reading
	ok      bool
}

func (l *Latest) Set(r Reading) {
	l.mu.Lock()
	l.reading, l.ok = r, true
	l.mu.Unlock()
}

// Get returns the last stored reading, or false if none was stored yet.
func (l *Latest) Get() (Reading, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.reading, l.ok
}
