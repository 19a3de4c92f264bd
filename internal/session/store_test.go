package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adgen/internal/creative"
)

func TestGetReturnsSameSession(t *testing.T) {
	s := NewStore(Options{})

	a := s.Get("u1", "")
	b := s.Get("u1", "ann")

	assert.Same(t, a, b)
	assert.Equal(t, "ann", b.Username)
	assert.NotSame(t, a, s.Get("u2", ""))
}

func TestTryBeginAllowsOneAtATime(t *testing.T) {
	sess := NewStore(Options{}).Get("u1", "")

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sess.TryBegin() {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.True(t, sess.Busy())

	sess.End()
	assert.False(t, sess.Busy())
	assert.True(t, sess.TryBegin())
}

func TestDraftLifecycle(t *testing.T) {
	s := NewStore(Options{})
	sess := s.Get("u1", "")

	_, ok := sess.Draft()
	require.False(t, ok)

	sess.SetDraft(Draft{Form: creative.FormData{ProductName: "X"}, Step: 1})
	d, ok := sess.Draft()
	require.True(t, ok)
	assert.Equal(t, "X", d.Form.ProductName)

	s.Clear("u1")
	_, ok = sess.Draft()
	assert.False(t, ok)
}

func TestSweepKeepsBusyAndRecentSessions(t *testing.T) {
	s := NewStore(Options{IdleTTL: time.Hour})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Get("idle", "")
	busy := s.Get("busy", "")
	require.True(t, busy.TryBegin())

	now = now.Add(2 * time.Hour)
	s.Get("fresh", "")

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 2, s.Len())
}
