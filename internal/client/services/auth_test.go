package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmeckel/ski-race-timer-sub004/internal/common"
	"github.com/jmeckel/ski-race-timer-sub004/internal/logging"
)

func TestAuthService_LoginCoalesced(t *testing.T) {
	h := newHarness(t)
	h.store.token = ""
	release := make(chan struct{})
	h.api.tokenFn = func(pin string) (string, error) {
		<-release
		return "issued", nil
	}
	a := NewAuthService(h.api, h.store, logging.Nop())

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = a.Login(context.Background(), "1234")
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.api.tokenCalls)
	assert.Equal(t, "issued", h.store.AuthToken())
}

func TestAuthService_LoginWrongPIN(t *testing.T) {
	h := newHarness(t)
	h.store.token = ""
	h.api.tokenFn = func(string) (string, error) {
		return "", errors.Join(common.ErrInvalidPIN, errors.New("HTTP 401"))
	}
	a := NewAuthService(h.api, h.store, logging.Nop())

	err := a.Login(context.Background(), "0000")
	require.ErrorIs(t, err, common.ErrInvalidPIN)
	assert.Empty(t, h.store.AuthToken())
}

func TestAuthService_HasValidCredential(t *testing.T) {
	h := newHarness(t)
	a := NewAuthService(h.api, h.store, logging.Nop())
	now := time.Date(2026, 1, 10, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	h.store.token = signed
	assert.False(t, a.HasValidCredential())

	h.store.token = "opaque"
	assert.True(t, a.HasValidCredential())

	a.Logout()
	assert.False(t, a.HasValidCredential())
}
