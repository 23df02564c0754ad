package mcp

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRegistry_RegisterAndLookup(t *testing.T) {
	r := NewClientRegistry()

	r.Register("trainee-1", "client-abc")
	cid, ok := r.ClientFor("trainee-1")
	assert.True(t, ok)
	assert.Equal(t, "client-abc", cid)
}

func TestClientRegistry_NotFound(t *testing.T) {
	r := NewClientRegistry()

	_, ok := r.ClientFor("unknown")
	assert.False(t, ok)
}

func TestClientRegistry_Reconnect(t *testing.T) {
	r := NewClientRegistry()

	r.Register("trainee-1", "client-old")
	r.Register("trainee-1", "client-new")

	cid, ok := r.ClientFor("trainee-1")
	assert.True(t, ok)
	assert.Equal(t, "client-new", cid)
}

func TestClientRegistry_Remove(t *testing.T) {
	r := NewClientRegistry()

	r.Register("trainee-1", "client-abc")
	r.Register("trainee-2", "client-abc")
	r.Register("trainee-3", "client-xyz")

	r.Remove("client-abc")

	_, ok := r.ClientFor("trainee-1")
	assert.False(t, ok)
	_, ok = r.ClientFor("trainee-2")
	assert.False(t, ok)
	cid, ok := r.ClientFor("trainee-3")
	assert.True(t, ok)
	assert.Equal(t, "client-xyz", cid)
}

func TestSessionLocks_Serializes(t *testing.T) {
	l := NewSessionLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer l.Lock("s-1")()
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, l.Len(), "released locks are dropped")
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	l := NewSessionLocks()

	release := l.Lock("s-1")
	done := make(chan struct{})
	go func() {
		l.Lock("s-2")()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another session blocked")
	}
	assert.Equal(t, 1, l.Len())
	release()
	assert.Equal(t, 0, l.Len())
}
