package session

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"finflare/internal/cache"
	"finflare/internal/log"
	"finflare/internal/ports"
)

// ManagerConfig bounds the set of live sessions.
type ManagerConfig struct {
	TTL         time.Duration
	MaxSessions int
	InitTimeout time.Duration
}

// Manager maps browser session ids to Stores.
type Manager struct {
	auth      ports.Authenticator
	tokens    TokenStoreFactory
	cfg       ManagerConfig
	logger    *log.Logger
	stores    *cache.LRUCache[*Store]
	group     singleflight.Group
	mu        sync.Mutex
	listeners []func(Event)
}

func NewManager(auth ports.Authenticator, tokens TokenStoreFactory, cfg ManagerConfig, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1000
	}
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 5 * time.Second
	}
	m := &Manager{
		auth:   auth,
		tokens: tokens,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentSession),
	}
	m.stores = cache.NewLRUCache(cfg.MaxSessions, cfg.TTL,
		cache.WithEvictHook(func(sid string, _ *Store) {
			m.logger.Debug("Session evicted", log.FieldSessionID, sid)
		}))
	return m
}

// Cache exposes the session cache so a cache.Manager can sweep it.
func (m *Manager) Cache() cache.Cleaner { return m.stores }

// OnEvent forwards every session event of every Store to fn.
func (m *Manager) OnEvent(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Lookup returns the Store for sid, creating it if needed, without
// initializing it.
func (m *Manager) Lookup(sid string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.stores.Get(sid); ok {
		m.stores.Touch(sid)
		return st
	}
	st := NewStore(sid, m.auth, m.tokens(sid), WithLogger(m.logger))
	st.Subscribe(m.forward)
	m.stores.Set(sid, st)
	return st
}

// Resolve returns the initialized Store for sid. Concurrent requests for the
// same sid share one initialization, which runs detached from ctx under the
// configured timeout. Resolve itself returns early with ctx.Err() if ctx ends
// first; the Store is still returned and initialization carries on.
func (m *Manager) Resolve(ctx context.Context, sid string) (*Store, error) {
	st := m.Lookup(sid)
	if !st.Loading() {
		return st, nil
	}

	ch := m.group.DoChan(sid, func() (any, error) {
		ictx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.InitTimeout)
		defer cancel()
		start := time.Now()
		err := st.Initialize(ictx)
		m.logger.DebugContext(ctx, "Session initialized",
			log.FieldSessionID, sid,
			log.FieldDuration, time.Since(start).Milliseconds(),
			log.FieldSuccess, err == nil)
		return nil, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			m.logger.WarnContext(ctx, "Session initialization incomplete",
				log.FieldSessionID, sid, log.FieldError, res.Err.Error())
		}
		return st, nil
	case <-ctx.Done():
		return st, ctx.Err()
	}
}

// Size is the number of live sessions.
func (m *Manager) Size() int { return m.stores.Size() }

func (m *Manager) forward(ev Event) {
	m.mu.Lock()
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}
