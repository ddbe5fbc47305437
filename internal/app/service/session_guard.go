package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sifan077/PowerQR/internal/app/model"
	apprepository "github.com/sifan077/PowerQR/internal/app/repository"
	"github.com/sifan077/PowerQR/internal/backend"
	"go.uber.org/zap"
)

// HashPassword is the only form a password ever leaves the process in:
// SHA-256 of the UTF-8 bytes, base64url without padding.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SessionGuard owns the operator's single login session.
type SessionGuard struct {
	api    backend.API
	store  apprepository.KVStore
	logger *zap.Logger
	now    func() time.Time
}

// NewSessionGuard returns a guard storing its session in store.
func NewSessionGuard(api backend.API, store apprepository.KVStore, logger *zap.Logger) *SessionGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionGuard{api: api, store: store, logger: logger, now: time.Now}
}

// Login authenticates with the backend and replaces any stored session.
func (g *SessionGuard) Login(ctx context.Context, username, password string) (model.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.Session{}, model.NewValidationError("username", "username is required")
	}
	if password == "" {
		return model.Session{}, model.NewValidationError("password", "password is required")
	}

	token, err := g.api.Authenticate(ctx, username, HashPassword(password))
	if err != nil {
		return model.Session{}, err
	}

	session := model.Session{
		Token:     token,
		ExpiresAt: g.now().Add(model.SessionTTL).UnixMilli(),
	}
	data, err := json.Marshal(session)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode session: %w", err)
	}
	if err := g.store.Set(ctx, model.SessionKey, data, model.SessionTTL); err != nil {
		return model.Session{}, fmt.Errorf("store session: %w", err)
	}

	g.logger.Info("operator logged in", zap.String("username", username))
	return session, nil
}

// Token returns the stored token if the session is still valid. Expired or
// unreadable sessions are deleted and reported as ErrSessionExpired.
func (g *SessionGuard) Token(ctx context.Context) (string, error) {
	data, err := g.store.Get(ctx, model.SessionKey)
	if err != nil {
		if errors.Is(err, apprepository.ErrKeyNotFound) {
			return "", model.ErrSessionExpired
		}
		return "", fmt.Errorf("load session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil || !session.ValidAt(g.now()) {
		if delErr := g.store.Delete(ctx, model.SessionKey); delErr != nil {
			g.logger.Warn("failed to purge stale session", zap.Error(delErr))
		}
		return "", model.ErrSessionExpired
	}
	return session.Token, nil
}

// Do runs fn with the current token. A 401 from the backend means the token
// is dead even if its expiry says otherwise; the session is dropped then too.
func (g *SessionGuard) Do(ctx context.Context, fn func(token string) error) error {
	token, err := g.Token(ctx)
	if err != nil {
		return err
	}
	err = fn(token)
	var remote *model.RemoteError
	if errors.As(err, &remote) && remote.StatusCode == http.StatusUnauthorized {
		if delErr := g.store.Delete(ctx, model.SessionKey); delErr != nil {
			g.logger.Warn("failed to purge rejected session", zap.Error(delErr))
		}
		return model.ErrSessionExpired
	}
	return err
}

// Logout drops the session.
func (g *SessionGuard) Logout(ctx context.Context) error {
	if err := g.store.Delete(ctx, model.SessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
