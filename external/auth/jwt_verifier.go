package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/studentize/external/redis"
	"github.com/foxseedlab/studentize/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

const (
	verifiedTokenCachePrefix = "auth:verified:"
	maxVerifiedTokenCacheTTL = 10 * time.Minute
)

type JWTVerifier struct {
	secret       []byte
	issuer       string
	serviceToken string
	cache        *redis.Client
	now          func() time.Time
}

func NewJWTVerifier(secret, issuer, serviceToken string, cache *redis.Client) *JWTVerifier {
	return &JWTVerifier{
		secret:       []byte(secret),
		issuer:       issuer,
		serviceToken: serviceToken,
		cache:        cache,
		now:          time.Now,
	}
}

func (v *JWTVerifier) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	if token == "" {
		return nil, auth.ErrUnauthorized
	}
	if v.serviceToken != "" && subtle.ConstantTimeCompare([]byte(token), []byte(v.serviceToken)) == 1 {
		return &auth.Principal{Kind: auth.PrincipalService, UserID: "service", Token: token}, nil
	}

	key := verifiedTokenCachePrefix + tokenFingerprint(token)
	if userID, err := v.cache.Get(ctx, key); err == nil && userID != "" {
		return &auth.Principal{Kind: auth.PrincipalUser, UserID: userID, Token: token}, nil
	} else if err != nil && !errors.Is(err, redis.ErrCacheMiss) {
		slog.Warn("verified token cache lookup failed", "error", err)
	}

	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", auth.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", auth.ErrUnauthorized)
	}

	ttl := claims.ExpiresAt.Sub(v.now())
	if ttl > maxVerifiedTokenCacheTTL {
		ttl = maxVerifiedTokenCacheTTL
	}
	if ttl > 0 {
		if err := v.cache.Set(ctx, key, claims.Subject, ttl); err != nil {
			slog.Warn("failed to cache verified token", "error", err)
		}
	}
	return &auth.Principal{Kind: auth.PrincipalUser, UserID: claims.Subject, Token: token}, nil
}

func tokenFingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
