package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// StorageKey is the local storage key the token is persisted under.
const StorageKey = "jwtToken"

var (
	// ErrNotAuthenticated is returned before a protected call is attempted without a token.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrEmptyToken means the backend accepted the credentials but returned no token.
	ErrEmptyToken = errors.New("login response carried no token")
)

// AuthenticationError is a rejected login, carrying the backend's message.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

type Reason string

const (
	ReasonLogout   Reason = "logout"
	ReasonRejected Reason = "rejected"
)

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Session holds the bearer token of the logged in user. It is shared by every
// component that issues authenticated calls and by the push channel goroutine.
type Session struct {
	mu       sync.RWMutex
	token    string
	store    Store
	auth     Authenticator
	hooks    map[int]func(Reason)
	nextHook int
	logger   *zap.Logger
}

// New restores a previously stored token, if any.
func New(ctx context.Context, store Store, auth Authenticator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		store:  store,
		auth:   auth,
		hooks:  map[int]func(Reason){},
		logger: logger.Named("session"),
	}

	if store != nil {
		token, err := store.Get(ctx, StorageKey)
		switch {
		case err == nil && strings.TrimSpace(token) != "":
			s.token = strings.TrimSpace(token)
			s.logger.Info("session restored")
		case err != nil:
			s.logger.Debug("no stored session", zap.Error(err))
		}
	}
	return s
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	if s.auth == nil {
		return &AuthenticationError{Message: "no authenticator configured"}
	}

	token, err := s.auth.Authenticate(ctx, strings.TrimSpace(username), password)
	if err != nil {
		s.logger.Warn("login failed", zap.String("username", username), zap.Error(err))
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return authErr
		}
		return &AuthenticationError{Message: err.Error(), Err: err}
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return &AuthenticationError{Message: ErrEmptyToken.Error(), Err: ErrEmptyToken}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Set(ctx, StorageKey, token); err != nil {
			s.logger.Warn("token not persisted", zap.Error(err))
		}
	}
	s.logger.Info("logged in", zap.String("username", username))
	return nil
}

// Logout clears the token without contacting the backend.
func (s *Session) Logout(ctx context.Context) error {
	return s.Invalidate(ctx, ReasonLogout)
}

// Invalidate drops the token and notifies the registered hooks when one was held.
func (s *Session) Invalidate(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	hooks := make([]func(Reason), 0, len(s.hooks))
	for _, fn := range s.hooks {
		hooks = append(hooks, fn)
	}
	s.mu.Unlock()

	var err error
	if s.store != nil {
		if delErr := s.store.Delete(ctx, StorageKey); delErr != nil {
			err = fmt.Errorf("clear stored token: %w", delErr)
		}
	}

	if had {
		s.logger.Info("session invalidated", zap.String("reason", string(reason)))
		for _, fn := range hooks {
			fn(reason)
		}
	}
	return err
}

// OnInvalidate registers fn and returns a function removing it.
func (s *Session) OnInvalidate(fn func(Reason)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHook
	s.nextHook++
	s.hooks[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.hooks, id)
	}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated does not check the token's expiry or signature.
func (s *Session) IsAuthenticated() bool {
	return s.Token() != ""
}

func (s *Session) AuthHeader() map[string]string {
	token := s.Token()
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
