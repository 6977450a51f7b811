package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

const adminTokenTTL = 24 * time.Hour

// InitJWT sets the signing secret for admin API tokens. An empty secret
// leaves token issuing disabled.
func InitJWT(secret string) {
	jwtSecret = []byte(secret)
}

func JWTEnabled() bool {
	return len(jwtSecret) > 0
}

// GenerateAdminJWT issues a bearer token for the admin HTTP API.
func GenerateAdminJWT(adminID int64) (string, error) {
	if !JWTEnabled() {
		return "", errors.New("JWT_SECRET is not set")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": adminID,
		"role":    "admin",
		"exp":     now.Add(adminTokenTTL).Unix(),
		"iat":     now.Unix(),
		"nbf":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseAdminJWT validates the token and returns the admin's Telegram id.
func ParseAdminJWT(tokenString string) (int64, error) {
	if !JWTEnabled() {
		return 0, errors.New("JWT_SECRET is not set")
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	}, jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return 0, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	if role, _ := claims["role"].(string); role != "admin" {
		return 0, errors.New("not an admin token")
	}

	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, errors.New("user_id not found")
	}

	return int64(userID), nil
}
