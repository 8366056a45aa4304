package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"zudlik/internal/config"
	"zudlik/internal/contextutils"
	"zudlik/internal/services"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthContext is the authenticated identity stored on the request context.
type AuthContext struct {
	UserID int64
	Email  string
	Role   string
}

type authContextKey struct{}

// GetAuthContext returns the authenticated identity, if any.
func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(*AuthContext)
	return auth, ok
}

// Authenticator verifies bearer tokens issued by the auth service.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthenticator creates the JWT authenticator.
func NewAuthenticator(cfg config.AuthConfig, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		secret: []byte(cfg.JWTSecret),
		logger: logger,
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (a *Authenticator) RequireAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, err := a.authenticate(r)
			if err != nil {
				a.logger.Debug("authentication rejected",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":{"type":"AUTHENTICATION_ERROR","message":"authentication required"}}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(a.withAuth(r.Context(), auth)))
		})
	}
}

// OptionalAuth attaches the identity when a valid token is present and
// passes the request through anonymously otherwise.
func (a *Authenticator) OptionalAuth() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth, err := a.authenticate(r); err == nil {
				r = r.WithContext(a.withAuth(r.Context(), auth))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authenticator) withAuth(ctx context.Context, auth *AuthContext) context.Context {
	ctx = context.WithValue(ctx, authContextKey{}, auth)
	return contextutils.WithUserID(ctx, auth.UserID)
}

func (a *Authenticator) authenticate(r *http.Request) (*AuthContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, fmt.Errorf("malformed authorization header")
	}

	claims := &services.AuthClaims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &AuthContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
