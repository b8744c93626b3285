package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/postpilotapp/postpilot/internal/models"
)

// fakeClock drives the limiter deterministically without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(maxRequests int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}
	l := NewLimiter(maxRequests, window)
	l.now = clock.Now
	return l, clock
}

func TestCheckLimitWindow(t *testing.T) {
	l, clock := newTestLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		assert.True(t, l.CheckLimit("user", "post"), "call %d", i+1)
		clock.Advance(10 * time.Millisecond)
	}
	assert.False(t, l.CheckLimit("user", "post"), "6th call is rejected")
	assert.Equal(t, 5, l.GetCount("user", "post"), "rejected check records nothing")

	clock.Advance(time.Second + 10*time.Millisecond)
	assert.True(t, l.CheckLimit("user", "post"), "window has slid past the old entries")
}

func TestCheckLimitIsolatesCallersAndChannels(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	assert.True(t, l.CheckLimit("a", "post"))
	assert.False(t, l.CheckLimit("a", "post"))

	assert.True(t, l.CheckLimit("a", "read"), "other channel has its own window")
	assert.True(t, l.CheckLimit("b", "post"), "other caller has its own window")
}

func TestGetCountDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(2, time.Minute)

	assert.Equal(t, 0, l.GetCount("user", "post"))
	l.CheckLimit("user", "post")

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, l.GetCount("user", "post"))
	}
	assert.True(t, l.CheckLimit("user", "post"))
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.CheckLimit("user", "post")
	l.CheckLimit("user", "read")
	l.CheckLimit("other", "post")

	l.Reset("user", "post")
	assert.Equal(t, 0, l.GetCount("user", "post"))
	assert.Equal(t, 1, l.GetCount("user", "read"), "named reset leaves other channels")

	l.Reset("user")
	assert.Equal(t, 0, l.GetCount("user", "read"))
	assert.Equal(t, 1, l.GetCount("other", "post"), "reset never touches other callers")
}

func TestCallerIDsWithSeparatorCharactersDoNotCollide(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	// "user|post"/"x" and "user"/"post|x" concatenate identically; they must
	// stay independent windows.
	assert.True(t, l.CheckLimit("user|post", "x"))
	assert.True(t, l.CheckLimit("user", "post|x"))
	assert.Equal(t, 1, l.GetCount("user|post", "x"))
	assert.Equal(t, 1, l.GetCount("user", "post|x"))

	l.Reset("user")
	assert.Equal(t, 0, l.GetCount("user", "post|x"))
	assert.Equal(t, 1, l.GetCount("user|post", "x"), "reset must stop at the caller boundary")
}

func TestCleanupEvictsExpiredWindows(t *testing.T) {
	l, clock := newTestLimiter(5, time.Second)

	l.CheckLimit("stale", "post")
	clock.Advance(2 * time.Second)
	l.CheckLimit("live", "post")

	l.Cleanup()

	l.mu.Lock()
	_, staleExists := l.entries[entryKey{caller: "stale", channel: "post"}]
	_, liveExists := l.entries[entryKey{caller: "live", channel: "post"}]
	l.mu.Unlock()

	assert.False(t, staleExists)
	assert.True(t, liveExists)
}

func TestLimitFor(t *testing.T) {
	tests := []struct {
		platform  string
		operation string
		want      int
	}{
		{"instagram", "post", 25},
		{"instagram", "read", 200},
		{"tiktok", "post", 50},
		{"tiktok", "read", 500},
		{"youtube", "post", 10},
		{"youtube", "read", 100},
		{"twitter", "post", 300},
		{"twitter", "read", 1000},
		{"myspace", "post", 100},
		{"instagram", "dance", 100},
	}
	for _, tt := range tests {
		got := LimitFor(models.Platform(tt.platform), tt.operation)
		assert.Equal(t, tt.want, got, "%s/%s", tt.platform, tt.operation)
	}
}
