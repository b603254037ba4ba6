package auth

import (
	"errors"
	"sync"

	jwt "github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when a session is built without a token.
var ErrNoCredential = errors.New("no access token configured")

// Session is the identity collaborator the sync engine consumes: it
// supplies the current user and the bearer credential, and forgets
// both when the remote API rejects them.
type Session interface {
	UserID() string
	Token() string
	Invalidate()
}

// TokenSession reads the user id from an access token's subject. The
// signature is not checked here; the remote API is the verifier.
type TokenSession struct {
	mu           sync.RWMutex
	token        string
	userID       string
	invalidated  bool
	onInvalidate []func()
}

// NewTokenSession parses the subject out of token.
func NewTokenSession(token string) (*TokenSession, error) {
	if token == "" {
		return nil, ErrNoCredential
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("access token has no subject")
	}
	return &TokenSession{token: token, userID: claims.Subject}, nil
}

func (s *TokenSession) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *TokenSession) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnInvalidate registers a hook run once when the credential is dropped.
func (s *TokenSession) OnInvalidate(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate discards the cached credential. Later calls are no-ops.
func (s *TokenSession) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.token = ""
	s.userID = ""
	hooks := s.onInvalidate
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Invalidated reports whether the credential has been dropped.
func (s *TokenSession) Invalidated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.invalidated
}
