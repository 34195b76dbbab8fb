package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mo-amir99/lms-learner-go/internal/utils/jwt"
	"github.com/mo-amir99/lms-learner-go/pkg/cache"
	"github.com/mo-amir99/lms-learner-go/pkg/recordstore"
)

const confirmedKeyPrefix = "auth:confirmed:"

// ErrTokenUnconfirmed is returned when the record store could not be asked about a
// token. The token may still be valid.
var ErrTokenUnconfirmed = errors.New("token could not be confirmed")

// TokenParser turns a bearer token into claims.
type TokenParser func(ctx context.Context, token string) (*jwt.Claims, error)

// VerifyWith checks signatures with the shared secret.
func VerifyWith(secret string) TokenParser {
	return func(_ context.Context, token string) (*jwt.Claims, error) {
		return jwt.VerifyToken(token, secret)
	}
}

// TokenConfirmer asks the record store which user a token belongs to.
type TokenConfirmer interface {
	ConfirmToken(ctx context.Context, collection, token string) (string, error)
}

// ConfirmWith accepts tokens signed by the record store, whose secret is not known
// here. A token passes only once the store confirms it for the user id it claims.
// Confirmations are cached for ttl, never past the token's expiry. c may be nil.
func ConfirmWith(confirmer TokenConfirmer, c cache.Client, ttl time.Duration, logger *slog.Logger) TokenParser {
	return func(ctx context.Context, token string) (*jwt.Claims, error) {
		claims, err := jwt.DecodeWithoutVerify(token)
		if err != nil {
			return nil, err
		}

		key := confirmedKeyPrefix + tokenDigest(token)
		if c != nil {
			userID, err := c.Get(ctx, key)
			switch {
			case err == nil && userID == claims.UserID:
				return claims, nil
			case err != nil && !errors.Is(err, cache.ErrMiss):
				logger.WarnContext(ctx, "token cache read failed", slog.String("error", err.Error()))
			}
		}

		collection := claims.CollectionID
		if collection == "" {
			collection = UsersCollection
		}
		userID, err := confirmer.ConfirmToken(ctx, collection, token)
		if err != nil {
			if errors.Is(err, recordstore.ErrUnauthorized) || errors.Is(err, recordstore.ErrInvalid) || errors.Is(err, recordstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: %v", jwt.ErrInvalidToken, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrTokenUnconfirmed, err)
		}
		if userID != claims.UserID {
			logger.WarnContext(ctx, "token claims a different user than the record store",
				slog.String("claimed", claims.UserID),
				slog.String("confirmed", userID),
			)
			return nil, jwt.ErrInvalidToken
		}

		if c != nil {
			if err := c.Set(ctx, key, userID, confirmationTTL(claims, ttl, time.Now())); err != nil {
				logger.WarnContext(ctx, "token cache write failed", slog.String("error", err.Error()))
			}
		}
		return claims, nil
	}
}

func confirmationTTL(claims *jwt.Claims, ttl time.Duration, now time.Time) time.Duration {
	if claims.ExpiresAt == nil {
		return ttl
	}
	if remaining := claims.ExpiresAt.Sub(now); remaining < ttl {
		return remaining
	}
	return ttl
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
