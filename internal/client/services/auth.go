package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jmeckel/ski-race-timer-sub004/internal/client/client"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

// AuthService exchanges the race PIN for a bearer credential and keeps it in
// the Store. Concurrent logins share one in-flight verification.
type AuthService struct {
	api    client.Client
	store  StateStore
	logger logging.Logger
	now    func() time.Time

	group singleflight.Group
}

func NewAuthService(api client.Client, store StateStore, logger logging.Logger) *AuthService {
	return &AuthService{api: api, store: store, logger: logger, now: time.Now}
}

// Login verifies pin with the service and stores the issued credential.
func (a *AuthService) Login(ctx context.Context, pin string) error {
	_, err, shared := a.group.Do(pin, func() (any, error) {
		token, err := a.api.IssueToken(ctx, pin, a.store.Device())
		if err != nil {
			return nil, err
		}
		a.store.SetAuthToken(token)
		return token, nil
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	a.logger.Info(ctx, "credential issued", "shared", shared)
	return nil
}

// Logout forgets the credential.
func (a *AuthService) Logout() {
	a.store.ClearAuthToken()
}

// HasValidCredential reports whether a credential is stored and not known to
// be expired.
func (a *AuthService) HasValidCredential() bool {
	token := a.store.AuthToken()
	return token != "" && !client.TokenExpired(token, a.now())
}
