package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any bearer token that does not validate
var ErrInvalidToken = errors.New("invalid or expired token")

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Claims are the session claims carried by a bearer token
type Claims struct {
	UserID   uint64 `json:"uid"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"isAdmin"`
	Role     string `json:"role"`
	DeviceID string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates HS256 session tokens
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer signing with secret
func NewTokenIssuer(secret, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the issuer's clock. Tests only.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Issue mints a token carrying the user id, email and admin claim
func (t *TokenIssuer) Issue(userID uint64, email string, isAdmin bool) (string, time.Time, error) {
	return t.IssueForDevice(userID, email, isAdmin, "")
}

// IssueForDevice mints a token bound to the device the user signed in from
func (t *TokenIssuer) IssueForDevice(userID uint64, email string, isAdmin bool, deviceID string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)

	role := RoleUser
	if isAdmin {
		role = RoleAdmin
	}

	claims := Claims{
		UserID:   userID,
		Email:    email,
		IsAdmin:  isAdmin,
		Role:     role,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a bearer token and returns its claims
func (t *TokenIssuer) Validate(bearer string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(bearer, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(claims.UserID, 10) {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}
