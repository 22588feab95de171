package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gamevault/apiserver/internal/clock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = time.Hour

// TokenIssuer mints and validates HS256 bearer tokens whose subject is a user ID.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenIssuer constructs a TokenIssuer. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration, clk clock.Clock) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clk == nil {
		clk = clock.New()
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
	}
}

// IssueToken returns a signed token for userID expiring after the configured TTL.
// Each token carries a random ID, so repeated calls never return the same value.
func (t *TokenIssuer) IssueToken(userID int) (string, error) {
	now := t.clock.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// ValidateToken verifies the signature and expiry of tokenString and returns
// the user ID it was issued for.
func (t *TokenIssuer) ValidateToken(tokenString string) (int, error) {
	if strings.TrimSpace(tokenString) == "" {
		return 0, ErrTokenMissing
	}

	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	},
		jwt.WithTimeFunc(t.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, &Error{Reason: ReasonExpired, Err: err}
		}
		return 0, &Error{Reason: ReasonMalformed, Err: err}
	}
	if !token.Valid {
		return 0, &Error{Reason: ReasonMalformed, Err: errors.New("invalid token")}
	}

	userID, err := strconv.Atoi(strings.TrimSpace(claims.Subject))
	if err != nil || userID < 1 {
		return 0, &Error{Reason: ReasonMalformed, Err: errors.New("invalid subject")}
	}
	return userID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" || strings.EqualFold(header, "Bearer") {
		return "", ErrTokenMissing
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", &Error{Reason: ReasonMalformed, Err: errors.New("invalid authorization scheme")}
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}
