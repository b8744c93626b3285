// Package ratelimit implements advisory sliding-window rate accounting per
// caller and operation channel, plus the decorator and middleware that gate
// handlers with it.
package ratelimit

import (
	"sync"
	"time"
)

// entryKey identifies one caller's window on one channel. A struct key keeps
// caller IDs containing any separator character from colliding with another
// (caller, channel) pair.
type entryKey struct {
	caller  string
	channel string
}

// Limiter counts requests in a trailing window per (callerID, channel).
// Checking consumes capacity; rejected checks record nothing.
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	entries map[entryKey][]time.Time
	now     func() time.Time
}

func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		entries:     make(map[entryKey][]time.Time),
		now:         time.Now,
	}
}

// CheckLimit reports whether the caller may proceed on the channel and, if so,
// records the attempt as consumed capacity.
func (l *Limiter) CheckLimit(callerID, channel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	k := entryKey{caller: callerID, channel: channel}
	live := l.trim(k, now)

	if len(live) >= l.maxRequests {
		l.entries[k] = live
		return false
	}

	l.entries[k] = append(live, now)
	return true
}

// GetCount returns the current non-expired count without consuming capacity.
func (l *Limiter) GetCount(callerID, channel string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	count := 0
	for _, t := range l.entries[entryKey{caller: callerID, channel: channel}] {
		if t.After(cutoff) {
			count++
		}
	}
	return count
}

// Reset clears the named channels for a caller, or every channel when none
// are given.
func (l *Limiter) Reset(callerID string, channels ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(channels) == 0 {
		for k := range l.entries {
			if k.caller == callerID {
				delete(l.entries, k)
			}
		}
		return
	}
	for _, ch := range channels {
		delete(l.entries, entryKey{caller: callerID, channel: ch})
	}
}

// Cleanup evicts windows with no live entries. Intended to run periodically
// to amortize memory growth.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k := range l.entries {
		live := l.trim(k, now)
		if len(live) == 0 {
			delete(l.entries, k)
		} else {
			l.entries[k] = live
		}
	}
}

// trim filters a key's timestamps to those inside the trailing window.
// Callers hold the mutex.
func (l *Limiter) trim(k entryKey, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	timestamps := l.entries[k]
	live := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	return live
}
