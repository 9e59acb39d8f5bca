// Package session owns the authenticated identity of one browser: the
// persisted token, the in-memory Session, and the notices produced by
// login, logout and expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finflare/internal/api"
	"finflare/internal/core"
	"finflare/internal/log"
	"finflare/internal/ports"
)

var (
	// ErrExpired is returned by Call when the backend rejected the token.
	ErrExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by Call when there is no session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

const (
	msgWelcome          = "Welcome back!"
	msgLoginFailed      = "Login failed"
	msgRegistered       = "Registration successful! Please login."
	msgRegisterFailed   = "Registration failed"
	msgLoggedOut        = "Logged out successfully"
	msgSessionExpired   = "Your session has expired. Please log in again."
	persistenceDeadline = 5 * time.Second
)

// EventKind names a session state change.
type EventKind string

const (
	EventRestored EventKind = "restored"
	EventLogin    EventKind = "login"
	EventLogout   EventKind = "logout"
	EventExpired  EventKind = "expired"
)

// Event is delivered to subscribers after the state change it describes.
type Event struct {
	Kind     EventKind
	SID      string
	UserID   int64
	Username string
	At       time.Time
}

type initState int

const (
	initPending initState = iota
	initRunning
	initDone
)

// Store is the per-browser session. All methods are safe for concurrent use.
type Store struct {
	sid    string
	auth   ports.Authenticator
	tokens TokenStore
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	token   string
	session *core.Session
	state   initState
	ready   chan struct{}
	notices []Notice
	subs    map[int]func(Event)
	nextSub int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore builds an uninitialized Store for sid.
func NewStore(sid string, auth ports.Authenticator, tokens TokenStore, opts ...StoreOption) *Store {
	s := &Store{
		sid:    sid,
		auth:   auth,
		tokens: tokens,
		logger: log.Default(),
		now:    time.Now,
		ready:  make(chan struct{}),
		subs:   make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentSession).With(log.FieldSessionID, sid)
	return s
}

// SID returns the browser session id this store belongs to.
func (s *Store) SID() string { return s.sid }

// Ready is closed once the current initialization attempt has finished.
func (s *Store) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Loading reports whether initialization has not finished yet.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != initDone
}

// Session returns a copy of the current identity.
func (s *Store) Session() (core.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return core.Session{}, false
	}
	return *s.session, true
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session != nil
}

// Token returns the bearer token currently in effect, if any.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Initialize restores the session from the persisted token. It runs at most
// once to completion. If ctx ends before the backend answers, the token is
// kept and a later call tries again.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case initDone, initRunning:
		s.mu.Unlock()
		return nil
	}
	s.state = initRunning
	s.mu.Unlock()

	event, err := s.restore(ctx)

	s.mu.Lock()
	if err != nil && isCancellation(err) {
		// Let the next caller retry with a fresh Ready channel.
		close(s.ready)
		s.ready = make(chan struct{})
		s.state = initPending
		s.mu.Unlock()
		return err
	}
	s.state = initDone
	close(s.ready)
	s.mu.Unlock()

	if event != nil {
		s.publish(*event)
	}
	return err
}

func (s *Store) restore(ctx context.Context) (*Event, error) {
	token, err := s.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.token == "" {
		s.token = token
	}
	s.mu.Unlock()

	if expired(token, s.now()) {
		s.logger.InfoContext(ctx, "Persisted token already expired")
		return s.clearIfCurrent(token, "", EventExpired), nil
	}

	result, err := s.auth.ValidateToken(api.WithToken(ctx, token))
	if err != nil && isCancellation(err) {
		return nil, err
	}
	if err != nil || !result.Valid || result.User == nil {
		s.logger.WarnContext(ctx, "Persisted token rejected", log.FieldError, errString(err))
		return s.clearIfCurrent(token, "", ""), nil
	}

	restored := result.User.Session(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != token {
		// A login won while validation was in flight.
		return nil, nil
	}
	s.session = &restored
	s.logger.InfoContext(ctx, "Session restored", log.FieldUser, restored.Username)
	return s.eventLocked(EventRestored), nil
}

// Login authenticates and persists the returned token. Failures leave the
// current session untouched and queue a notice.
func (s *Store) Login(ctx context.Context, username, password string) bool {
	resp, err := s.auth.Login(ctx, core.Credentials{Username: username, Password: password})
	if err == nil && resp.AccessToken == "" {
		err = errors.New("empty access token")
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Login failed", log.FieldUser, username, log.FieldError, err.Error())
		s.Notify(NoticeError, api.MessageOf(err, msgLoginFailed))
		return false
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistenceDeadline)
	defer cancel()
	if err := s.tokens.Save(pctx, resp.AccessToken); err != nil {
		s.logger.ErrorContext(ctx, "Persist token failed", log.FieldError, err.Error())
		s.Notify(NoticeError, msgLoginFailed)
		return false
	}

	sess := resp.Session(resp.AccessToken)
	s.mu.Lock()
	s.token = resp.AccessToken
	s.session = &sess
	s.notices = append(s.notices, Notice{Type: NoticeSuccess, Message: msgWelcome})
	ev := s.eventLocked(EventLogin)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "User logged in", log.FieldUser, sess.Username)
	s.publish(*ev)
	return true
}

// Register creates an account. It never authenticates.
func (s *Store) Register(ctx context.Context, reg core.Registration) bool {
	msg, err := s.auth.Register(ctx, reg)
	if err != nil {
		s.logger.WarnContext(ctx, "Registration failed", log.FieldUser, reg.Username, log.FieldError, err.Error())
		s.Notify(NoticeError, api.MessageOf(err, msgRegisterFailed))
		return false
	}
	s.logger.InfoContext(ctx, "User registered", log.FieldUser, reg.Username, "message", msg)
	s.Notify(NoticeSuccess, msgRegistered)
	return true
}

// Logout clears the persisted token and the session. Calling it while
// logged out only queues the notice again.
func (s *Store) Logout() {
	ctx, cancel := context.WithTimeout(context.Background(), persistenceDeadline)
	defer cancel()
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Error("Clear token failed", log.FieldError, err.Error())
	}

	s.mu.Lock()
	var ev *Event
	if s.session != nil {
		ev = s.eventLocked(EventLogout)
	}
	s.token = ""
	s.session = nil
	s.notices = append(s.notices, Notice{Type: NoticeSuccess, Message: msgLoggedOut})
	s.mu.Unlock()

	if ev != nil {
		s.logger.Info("User logged out", log.FieldUser, ev.Username)
		s.publish(*ev)
	}
}

// Invalidate drops the session if rejected is still the token in effect.
// A token replaced by a newer login is ignored.
func (s *Store) Invalidate(rejected string) bool {
	ev := s.clearIfCurrent(rejected, msgSessionExpired, EventExpired)
	if ev == nil {
		return false
	}
	s.publish(*ev)
	return true
}

func (s *Store) clearIfCurrent(token, notice string, kind EventKind) *Event {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return nil
	}
	var ev *Event
	if kind != "" {
		ev = s.eventLocked(kind)
	}
	s.token = ""
	s.session = nil
	if notice != "" {
		s.notices = append(s.notices, Notice{Type: NoticeWarning, Message: notice})
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistenceDeadline)
	defer cancel()
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Error("Clear token failed", log.FieldError, err.Error())
	}
	return ev
}

// Call runs fn with the current token in its context. A backend 401
// invalidates the session and is reported as ErrExpired.
func (s *Store) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	token := s.Token()
	if token == "" || !s.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	err := fn(api.WithToken(ctx, token))
	if errors.Is(err, api.ErrUnauthorized) {
		if s.Invalidate(token) {
			s.logger.WarnContext(ctx, "Backend rejected token, session cleared")
		}
		return fmt.Errorf("%w: %w", ErrExpired, err)
	}
	return err
}

// Fetch is Call for functions that return a value.
func Fetch[T any](ctx context.Context, s *Store, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := s.Call(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Subscribe registers fn for session events and returns its unsubscribe func.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) eventLocked(kind EventKind) *Event {
	ev := &Event{Kind: kind, SID: s.sid, At: s.now()}
	if s.session != nil {
		ev.UserID = s.session.UserID
		ev.Username = s.session.Username
	}
	return ev
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// expired reads the exp claim without verifying the signature. Tokens that
// are not JWTs are left for the backend to judge.
func expired(token string, now time.Time) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func errString(err error) string {
	if err == nil {
		return "invalid"
	}
	return err.Error()
}
