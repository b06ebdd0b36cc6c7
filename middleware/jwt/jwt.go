package jwt

import (
	"errors"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
)

// Claims JWT 声明
type Claims struct {
	UserID uint64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies the bearer tokens consumed at the HTTP
// boundary and the websocket handshake.
type TokenManager struct {
	secret     []byte
	expireDur  time.Duration
	refreshDur time.Duration
}

func NewTokenManager(secret string, expireHours, refreshHours int) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		expireDur:  time.Duration(expireHours) * time.Hour,
		refreshDur: time.Duration(refreshHours) * time.Hour,
	}
}

func (tm *TokenManager) GenerateToken(userID uint64) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.expireDur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (tm *TokenManager) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether the token is structurally valid but expired.
func (tm *TokenManager) IsExpired(tokenString string) bool {
	_, err := tm.ParseToken(tokenString)
	return errors.Is(err, ErrExpiredToken)
}

// RefreshToken issues a new token when the current one is inside the refresh
// window (valid, or expired by less than refreshDur).
func (tm *TokenManager) RefreshToken(tokenString string) (string, error) {
	claims, err := tm.ParseToken(tokenString)
	if err != nil && !errors.Is(err, ErrExpiredToken) {
		return "", err
	}
	if claims == nil {
		// Expired: re-parse without validation to read the claims back
		parser := jwt.NewParser(jwt.WithoutClaimsValidation())
		token, perr := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			return tm.secret, nil
		})
		if perr != nil {
			return "", ErrInvalidToken
		}
		c, ok := token.Claims.(*Claims)
		if !ok {
			return "", ErrInvalidToken
		}
		if c.ExpiresAt != nil && time.Since(c.ExpiresAt.Time) > tm.refreshDur {
			return "", ErrExpiredToken
		}
		claims = c
	}
	return tm.GenerateToken(claims.UserID)
}
