package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked or expired")
)

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenService issues and validates admin access tokens. When rdb is set,
// token ids are tracked in Redis so tokens can be revoked before expiry.
type TokenService struct {
	secret       []byte
	ttl          time.Duration
	adminUser    string
	passwordHash []byte
	rdb          redis.Cmdable
}

func NewTokenService(secret string, ttl time.Duration, adminUser, passwordHash string, rdb redis.Cmdable) (*TokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
	}
	return &TokenService{
		secret:       []byte(secret),
		ttl:          ttl,
		adminUser:    adminUser,
		passwordHash: []byte(passwordHash),
		rdb:          rdb,
	}, nil
}

// Login checks the admin credentials and issues a token.
func (s *TokenService) Login(ctx context.Context, username, password string) (*Token, error) {
	if subtle.ConstantTimeCompare([]byte(username), []byte(s.adminUser)) != 1 {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.Issue(ctx, username, RoleAdmin)
}

func (s *TokenService) Issue(ctx context.Context, userID, role string) (*Token, error) {
	now := time.Now()
	exp := now.Add(s.ttl)
	jti := uuid.NewString()

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "masterclass-pods",
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if err := s.rdb.Set(ctx, "access:"+jti, userID, s.ttl).Err(); err != nil {
			return nil, err
		}
	}

	return &Token{AccessToken: signed, ExpiresAt: exp}, nil
}

func (s *TokenService) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.rdb != nil {
		exists, err := s.rdb.Exists(ctx, "access:"+claims.ID).Result()
		if err != nil || exists != 1 {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

func (s *TokenService) Revoke(ctx context.Context, jti string) error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, "access:"+jti).Err()
}
