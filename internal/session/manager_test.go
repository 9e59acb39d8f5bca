package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflare/internal/core"
)

func TestManager_ResolveSharesInitialization(t *testing.T) {
	tokens := NewMemoryTokens()
	require.NoError(t, tokens.For("sid-a").Save(context.Background(), "opaque"))
	auth := &fakeAuth{
		validTokens: map[string]core.AuthResponse{"opaque": {ID: 1, Username: "alice"}},
		block:       make(chan struct{}),
	}
	m := NewManager(auth, tokens.For, ManagerConfig{InitTimeout: time.Second}, nil)

	var wg sync.WaitGroup
	stores := make([]*Store, 5)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st, err := m.Resolve(context.Background(), "sid-a")
			assert.NoError(t, err)
			stores[i] = st
		}(i)
	}

	require.Eventually(t, func() bool { return auth.count() == 1 }, time.Second, 5*time.Millisecond)
	close(auth.block)
	wg.Wait()

	for _, st := range stores {
		assert.Same(t, stores[0], st)
	}
	assert.True(t, stores[0].IsAuthenticated())
	assert.Equal(t, 1, auth.count())
	assert.Equal(t, 1, m.Size())
}

func TestManager_ResolveOutlivesCallerCancellation(t *testing.T) {
	tokens := NewMemoryTokens()
	require.NoError(t, tokens.For("sid-b").Save(context.Background(), "opaque"))
	auth := &fakeAuth{
		validTokens: map[string]core.AuthResponse{"opaque": {ID: 1, Username: "alice"}},
		block:       make(chan struct{}),
	}
	m := NewManager(auth, tokens.For, ManagerConfig{InitTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var st *Store
	var err error
	go func() {
		st, err = m.Resolve(ctx, "sid-b")
		close(done)
	}()
	require.Eventually(t, func() bool { return auth.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.ErrorIs(t, err, context.Canceled)
	close(auth.block)

	select {
	case <-st.Ready():
	case <-time.After(time.Second):
		t.Fatal("initialization did not finish")
	}
	assert.True(t, st.IsAuthenticated())
}

func TestManager_ForwardsEvents(t *testing.T) {
	auth := &fakeAuth{loginToken: "tok"}
	m := NewManager(auth, NewMemoryTokens().For, ManagerConfig{}, nil)

	var got []Event
	m.OnEvent(func(ev Event) { got = append(got, ev) })

	st, err := m.Resolve(context.Background(), "sid-c")
	require.NoError(t, err)
	require.True(t, st.Login(context.Background(), "alice", "pw"))
	st.Logout()

	require.Len(t, got, 2)
	assert.Equal(t, EventLogin, got[0].Kind)
	assert.Equal(t, "sid-c", got[0].SID)
	assert.Equal(t, "alice", got[0].Username)
	assert.Equal(t, EventLogout, got[1].Kind)
}

func TestManager_ListenersMayRegisterDuringDelivery(t *testing.T) {
	auth := &fakeAuth{loginToken: "tok"}
	m := NewManager(auth, NewMemoryTokens().For, ManagerConfig{}, nil)

	var first, late []EventKind
	m.OnEvent(func(ev Event) {
		first = append(first, ev.Kind)
		if ev.Kind == EventLogin {
			m.OnEvent(func(ev Event) { late = append(late, ev.Kind) })
		}
	})

	st, err := m.Resolve(context.Background(), "sid-d")
	require.NoError(t, err)
	require.True(t, st.Login(context.Background(), "alice", "pw"))
	assert.Empty(t, late, "a listener added during delivery misses that event")

	st.Logout()
	assert.Equal(t, []EventKind{EventLogin, EventLogout}, first)
	assert.Equal(t, []EventKind{EventLogout}, late)
}

func TestManager_TokensSurviveEviction(t *testing.T) {
	tokens := NewMemoryTokens()
	auth := &fakeAuth{loginToken: "tok", validTokens: map[string]core.AuthResponse{"tok": {ID: 1, Username: "alice"}}}
	m := NewManager(auth, tokens.For, ManagerConfig{MaxSessions: 1}, nil)

	first, err := m.Resolve(context.Background(), "one")
	require.NoError(t, err)
	require.True(t, first.Login(context.Background(), "alice", "pw"))

	_, err = m.Resolve(context.Background(), "two")
	require.NoError(t, err)

	again, err := m.Resolve(context.Background(), "one")
	require.NoError(t, err)
	assert.NotSame(t, first, again)
	assert.True(t, again.IsAuthenticated())
}
