package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-learner-go/internal/utils/jwt"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/logger"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

type mockConfirmer struct {
	mock.Mock
}

func (m *mockConfirmer) ConfirmToken(ctx context.Context, collection, token string) (string, error) {
	args := m.Called(ctx, collection, token)
	return args.String(0), args.Error(1)
}

var rejected = &recordstore.RemoteError{Status: http.StatusUnauthorized, Message: "The request requires valid record authorization token.", Kind: recordstore.ErrUnauthorized}

// unsignedToken builds a token anyone could craft: alg none, no signature.
func unsignedToken(t *testing.T, userID string) string {
	t.Helper()
	claims := jwt.Claims{
		UserID: userID,
		Type:   jwt.TypeAuthRecord,
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, claims).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}

func get(engine http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestConfirmWithRejectsForgedToken(t *testing.T) {
	r := newRegistry()
	victim := r.Acquire(Auth{UserID: "victim", Token: "real-token"})

	forged := unsignedToken(t, "victim")
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmToken", mock.Anything, UsersCollection, forged).Return("", rejected)

	engine := newEngine(r, ConfirmWith(confirmer, cache.NewMemoryCache(), time.Minute, logger.Discard()), nil)

	w := get(engine, "/api/whoami", forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "victim")
	assert.Equal(t, "real-token", victim.Auth.Token(), "stored token untouched")

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.Header.Set("Authorization", forged)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, r.Len(), "workspace not dropped")

	confirmer.AssertExpectations(t)
}

func TestConfirmWithCachesConfirmation(t *testing.T) {
	r := newRegistry()
	token := unsignedToken(t, "U1")
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmToken", mock.Anything, UsersCollection, token).Return("U1", nil).Once()

	engine := newEngine(r, ConfirmWith(confirmer, cache.NewMemoryCache(), time.Minute, logger.Discard()), nil)

	assert.Equal(t, http.StatusOK, get(engine, "/api/whoami", token).Code)
	assert.Equal(t, http.StatusOK, get(engine, "/api/whoami", token).Code)

	ws, ok := r.Get("U1")
	require.True(t, ok)
	assert.Equal(t, token, ws.Auth.Token())
	confirmer.AssertExpectations(t)
}

func TestConfirmWithRejectsOtherUsersToken(t *testing.T) {
	token := unsignedToken(t, "victim")
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmToken", mock.Anything, UsersCollection, token).Return("attacker", nil)

	parse := ConfirmWith(confirmer, nil, time.Minute, logger.Discard())
	_, err := parse(context.Background(), token)
	assert.ErrorIs(t, err, jwt.ErrInvalidToken)
}

func TestConfirmWithStoreDown(t *testing.T) {
	r := newRegistry()
	token := unsignedToken(t, "U1")
	confirmer := &mockConfirmer{}
	confirmer.On("ConfirmToken", mock.Anything, UsersCollection, token).Return("", errors.New("connection refused"))

	parse := ConfirmWith(confirmer, cache.NewMemoryCache(), time.Minute, logger.Discard())
	_, err := parse(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenUnconfirmed)

	w := get(newEngine(r, parse, nil), "/api/whoami", token)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, r.Len())
}

func TestConfirmationTTLStopsAtExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	claims := &jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(now.Add(30 * time.Second))}}

	assert.Equal(t, 30*time.Second, confirmationTTL(claims, time.Minute, now))
	assert.Equal(t, 10*time.Second, confirmationTTL(claims, 10*time.Second, now))
	assert.Equal(t, time.Minute, confirmationTTL(&jwt.Claims{}, time.Minute, now))
}
