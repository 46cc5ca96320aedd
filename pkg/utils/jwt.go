package utils

import (
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "locaposty"

// Each token kind carries its own audience so one can never stand in for another.
const (
	AudienceSession    = "session"
	AudienceGMBConnect = "gmb-connect"
)

type Claims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session token.
func GenerateToken(secretKey string, userID int64, email string, tokenDuration time.Duration) (string, error) {
	return signToken(secretKey, userID, email, tokenDuration, AudienceSession)
}

// ValidateToken accepts session tokens only.
func ValidateToken(secretKey, tokenString string) (*Claims, error) {
	return parseToken(secretKey, tokenString, AudienceSession)
}

// GenerateConnectState signs the OAuth state for connecting a Business Profile.
func GenerateConnectState(secretKey string, userID int64, email string, ttl time.Duration) (string, error) {
	return signToken(secretKey, userID, email, ttl, AudienceGMBConnect)
}

func ValidateConnectState(secretKey, state string) (*Claims, error) {
	return parseToken(secretKey, state, AudienceGMBConnect)
}

func signToken(secretKey string, userID int64, email string, ttl time.Duration, audience string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secretKey))
	if err != nil {
		slog.Error("signing token", "audience", audience, "err", err)
		return "", err
	}

	return signedToken, nil
}

func parseToken(secretKey, tokenString, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return []byte(secretKey), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithAudience(audience))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
