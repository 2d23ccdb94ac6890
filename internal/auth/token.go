package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer   = "microblogs-api"
	tokenAudience = "microblogs-client"
	revokedPrefix = "blacklist:"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// Claims is what a verified session token says about its bearer.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue creates a session token for the user.
func (t *TokenIssuer) Issue(userID uint, username string) (string, *Claims, error) {
	if len(t.secret) == 0 {
		return "", nil, fmt.Errorf("JWT secret not configured")
	}

	now := t.now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		JTI:       generateJTI(now),
		ExpiresAt: now.Add(t.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      claims.ExpiresAt.Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      claims.JTI,
	})

	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, audience and expiry.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := mapClaims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	username, _ := mapClaims["username"].(string)
	jti, _ := mapClaims["jti"].(string)

	return &Claims{
		UserID:    uint(userID),
		Username:  username,
		JTI:       jti,
		ExpiresAt: exp.Time,
	}, nil
}

func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8])
}

// Revoker keeps a Redis denylist of logged-out token ids.
// A nil client turns every call into a no-op.
type Revoker struct {
	rdb *redis.Client
}

func NewRevoker(rdb *redis.Client) *Revoker {
	return &Revoker{rdb: rdb}
}

// Revoke denies jti until the token would have expired anyway.
func (r *Revoker) Revoke(ctx context.Context, claims *Claims) error {
	if r == nil || r.rdb == nil || claims == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, revokedPrefix+claims.JTI, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Check returns ErrRevokedToken when claims belong to a logged-out session.
func (r *Revoker) Check(ctx context.Context, claims *Claims) error {
	if claims != nil && r.IsRevoked(ctx, claims.JTI) {
		return ErrRevokedToken
	}
	return nil
}

// IsRevoked fails open when Redis is unreachable.
func (r *Revoker) IsRevoked(ctx context.Context, jti string) bool {
	if r == nil || r.rdb == nil || jti == "" {
		return false
	}
	n, err := r.rdb.Exists(ctx, revokedPrefix+jti).Result()
	return err == nil && n > 0
}
