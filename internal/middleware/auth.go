package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type contextKey string

const accountIDKey contextKey = "accountID"

var (
	errInvalidToken = errors.New("invalid token")
	errRevokedToken = errors.New("token revoked")
)

// revocations holds logged-out tokens under "blacklist:<token>". Nil skips the check.
var revocations *redis.Client

func InitAuthMiddleware(redisClient *redis.Client) {
	revocations = redisClient
}

// WithAccountID stores the authenticated caller on ctx.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// AccountIDFromContext returns the caller set by AuthMiddleware.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	accountID, ok := ctx.Value(accountIDKey).(string)
	return accountID, ok && accountID != ""
}

func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from Authorization header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		// Extract token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		token := parts[1]

		accountID, err := validateToken(r.Context(), token)
		if err != nil {
			log.Printf("[AUTH] Rejected token: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
	})
}

func validateToken(ctx context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}

	subject, _ := claims["account_id"].(string)
	accountID, err := uuid.Parse(subject)
	if err != nil {
		return "", fmt.Errorf("%w: account_id claim: %v", errInvalidToken, err)
	}

	if revocations != nil {
		revoked, err := revocations.Exists(ctx, fmt.Sprintf("blacklist:%s", tokenString)).Result()
		if err != nil {
			// fail open while Redis is unavailable
			log.Printf("[AUTH] Failed to check token blacklist: %v", err)
		} else if revoked > 0 {
			return "", errRevokedToken
		}
	}

	return accountID.String(), nil
}

// SecurityHeaders sets the response headers every API response carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
