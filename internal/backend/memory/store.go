// Package memory is an in-process demo backend. It honors the same
// contracts as the REST backend, including 401s for bad tokens, so the whole
// front-end runs offline.
package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"finflare/internal/api"
	"finflare/internal/core"
)

const (
	DemoUsername = "demo"
	DemoPassword = "demo1234"

	defaultTokenTTL = 24 * time.Hour
)

type user struct {
	profile      core.AuthResponse
	passwordHash []byte
	income       decimal.Decimal
	streak       int
	maxStreak    int
	lastActivity core.Date
}

type account struct {
	user         *user
	expenses     core.ExpenseList
	budgets      []*budgetState
	investments  []core.Investment
	achievements []core.Achievement
}

// budgetState remembers the last expense id seen when the budget was reset.
type budgetState struct {
	core.Budget
	resetAfter int64
}

type Store struct {
	mu       sync.Mutex
	secret   []byte
	now      func() time.Time
	tokenTTL time.Duration
	bcrypt   int
	nextID   int64
	accounts map[string]*account
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithTokenTTL(d time.Duration) Option {
	return func(s *Store) { s.tokenTTL = d }
}

// WithSecret fixes the token signing key. A random key is used otherwise.
func WithSecret(secret []byte) Option {
	return func(s *Store) { s.secret = secret }
}

// WithoutSeed starts with no demo account.
func WithoutSeed() Option {
	return func(s *Store) { s.accounts = nil }
}

// New returns a store seeded with the demo account.
func New(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		tokenTTL: defaultTokenTTL,
		bcrypt:   bcrypt.MinCost,
		nextID:   1,
		accounts: map[string]*account{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		_, _ = rand.Read(s.secret)
	}
	if s.accounts == nil {
		s.accounts = map[string]*account{}
	} else {
		s.seed()
	}
	return s
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func (s *Store) today() core.Date {
	t := s.now().UTC()
	return core.NewDate(t.Year(), int(t.Month()), t.Day())
}

func (s *Store) addUser(reg core.Registration) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcrypt)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &account{user: &user{
		profile: core.AuthResponse{
			ID:        s.id(),
			Username:  reg.Username,
			Email:     reg.Email,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			TokenType: "Bearer",
		},
		passwordHash: hash,
		income:       decimal.NewFromInt(5000),
	}}
	s.accounts[strings.ToLower(reg.Username)] = acc
	return acc, nil
}

func badRequest(path, message string) *api.Error {
	return &api.Error{Method: http.MethodPost, Path: path, StatusCode: http.StatusBadRequest, Message: message}
}

func notFound(method, path string) *api.Error {
	return &api.Error{Method: method, Path: path, StatusCode: http.StatusNotFound, Message: "Resource not found"}
}

func (s *Store) Login(_ context.Context, creds core.Credentials) (core.AuthResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(creds.Username))]
	if !ok || bcrypt.CompareHashAndPassword(acc.user.passwordHash, []byte(creds.Password)) != nil {
		return core.AuthResponse{}, api.Unauthorized(http.MethodPost, "/auth/signin", "Invalid username or password")
	}
	token, err := s.issue(acc.user.profile.Username)
	if err != nil {
		return core.AuthResponse{}, err
	}
	out := acc.user.profile
	out.AccessToken = token
	return out, nil
}

func (s *Store) Register(_ context.Context, reg core.Registration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.accounts[strings.ToLower(reg.Username)]; taken {
		return "", badRequest("/auth/signup", "Error: Username is already taken!")
	}
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.user.profile.Email, reg.Email) {
			return "", badRequest("/auth/signup", "Error: Email is already in use!")
		}
	}
	if _, err := s.addUser(reg); err != nil {
		return "", err
	}
	return "User registered successfully!", nil
}

func (s *Store) ValidateToken(ctx context.Context) (core.TokenValidation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.authorize(ctx, http.MethodGet, "/auth/validate")
	if err != nil {
		return core.TokenValidation{}, err
	}
	profile := acc.user.profile
	return core.TokenValidation{Valid: true, User: &profile}, nil
}

func (s *Store) issue(username string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// authorize resolves the account owning the token in ctx. Callers hold s.mu.
func (s *Store) authorize(ctx context.Context, method, path string) (*account, error) {
	raw := api.TokenFromContext(ctx)
	if raw == "" {
		return nil, api.Unauthorized(method, path, "Full authentication is required to access this resource")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		msg := "Invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "Token expired"
		}
		return nil, api.Unauthorized(method, path, msg)
	}
	acc, ok := s.accounts[strings.ToLower(claims.Subject)]
	if !ok {
		return nil, api.Unauthorized(method, path, "User not found")
	}
	return acc, nil
}
