package session

import (
	"context"
	"sync"
)

// TokenKey is the fixed storage key the bearer token is persisted under.
const TokenKey = "finflare_token"

// TokenStore persists a single bearer token for one browser.
// Load returns "" with a nil error when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// TokenStoreFactory hands out the TokenStore owned by a browser session id.
type TokenStoreFactory func(sid string) TokenStore

// MemoryTokens keeps tokens in process memory, keyed by sid. Tokens survive
// eviction of the Store but not a restart.
type MemoryTokens struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]string)}
}

// For returns the store for sid.
func (m *MemoryTokens) For(sid string) TokenStore {
	return &memoryToken{parent: m, sid: sid}
}

type memoryToken struct {
	parent *MemoryTokens
	sid    string
}

func (t *memoryToken) Load(context.Context) (string, error) {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	return t.parent.tokens[t.sid], nil
}

func (t *memoryToken) Save(_ context.Context, token string) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	t.parent.tokens[t.sid] = token
	return nil
}

func (t *memoryToken) Clear(context.Context) error {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	delete(t.parent.tokens, t.sid)
	return nil
}
