// Package security provides the HTTP protection layer: authentication,
// rate limiting, inbound validation and audit logging.
package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	authInfoKey contextKey = "auth_info"
	clientIPKey contextKey = "client_ip"
)

// AuthInfo describes an authenticated caller.
type AuthInfo struct {
	UserID      string     `json:"user_id"`
	Permissions []string   `json:"permissions"`
	AuthType    string     `json:"auth_type"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Claims is the JWT claim set issued and accepted by the router.
type Claims struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Authenticator validates API keys and JWT bearer tokens.
type Authenticator struct {
	apiKeys   []string
	jwtSecret []byte
	jwtExpiry time.Duration
	logger    *logrus.Logger
}

// NewAuthenticator builds an authenticator. An empty key list plus an empty
// secret yields an authenticator that rejects everything, which is the safe
// default when auth is required but unconfigured.
func NewAuthenticator(apiKeys []string, jwtSecret string, logger *logrus.Logger) *Authenticator {
	return &Authenticator{
		apiKeys:   apiKeys,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: 24 * time.Hour,
		logger:    logger,
	}
}

// Authenticate accepts either a configured API key or a signed JWT.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*AuthInfo, error) {
	if info, err := a.ValidateAPIKey(ctx, token); err == nil {
		return info, nil
	}
	if claims, err := a.ValidateJWT(token); err == nil {
		return &AuthInfo{
			UserID:      claims.UserID,
			Permissions: claims.Permissions,
			AuthType:    "jwt",
			ExpiresAt:   &claims.ExpiresAt.Time,
		}, nil
	}
	return nil, errors.New("invalid authentication token")
}

// ValidateAPIKey checks a key against the configured set using constant-time
// comparison.
func (a *Authenticator) ValidateAPIKey(ctx context.Context, apiKey string) (*AuthInfo, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	for _, valid := range a.apiKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(valid)) == 1 {
			return &AuthInfo{
				UserID:      keyUserID(apiKey),
				Permissions: []string{"itineraries:generate"},
				AuthType:    "api_key",
			}, nil
		}
	}
	a.logger.WithFields(logrus.Fields{
		"api_key_prefix": MaskKey(apiKey),
		"remote_ip":      clientIPFromContext(ctx),
	}).Warn("Invalid API key attempted")
	return nil, errors.New("invalid API key")
}

// IssueJWT signs a token for the given user.
func (a *Authenticator) IssueJWT(userID string, permissions []string) (string, error) {
	if len(a.jwtSecret) == 0 {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID:      userID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trip-router",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.jwtExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ValidateJWT parses and verifies a bearer token.
func (a *Authenticator) ValidateJWT(tokenString string) (*Claims, error) {
	if len(a.jwtSecret) == 0 {
		return nil, errors.New("JWT secret is not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid JWT token")
	}
	return claims, nil
}

// Middleware enforces authentication on every request except the health
// endpoint, which load balancers probe unauthenticated.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/v1/health") {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, "missing authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), clientIPKey, ClientIP(r))
			info, err := a.Authenticate(ctx, token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"path":      r.URL.Path,
					"method":    r.Method,
					"remote_ip": ClientIP(r),
				}).Warn("Authentication failed")
				writeAuthError(w, "invalid authentication token")
				return
			}

			ctx = context.WithValue(ctx, authInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthInfo returns the caller identity placed on the context by the
// authentication middleware.
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func keyUserID(apiKey string) string {
	if len(apiKey) >= 8 {
		return "key_" + apiKey[:8]
	}
	return "key_" + apiKey
}

// MaskKey hides all but the edges of a credential for logging.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// ClientIP resolves the caller address, honoring forwarding headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func clientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		return ip
	}
	return "unknown"
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"authentication_error","code":401},"timestamp":%d}`, message, time.Now().Unix())
}
