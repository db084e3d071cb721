package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
	apperr "github.com/fashionfolio/portfolio-auth/domain/error"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/cookie"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/response"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

type authUserKey struct{}

type AuthMiddleware struct {
	authUseCase inbound.AuthUseCase
	logger      logger.Logger
}

func NewAuthMiddleware(authUseCase inbound.AuthUseCase, log logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authUseCase: authUseCase,
		logger:      log,
	}
}

// RequireAuth resolves the caller from the auth_token cookie or a Bearer
// header and stores the user in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			response.Unauthorized(w, "Not authorized to access this route")
			return
		}

		user, err := m.authUseCase.Authenticate(r.Context(), token)
		if err != nil {
			logger.LogAuthEvent(r.Context(), m.logger, "request_unauthenticated", "", ClientIP(r), false, map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			response.AppError(w, err)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is RequireAuth plus a role check.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUser(r.Context())
		if user == nil || user.Role != entity.RoleAdmin {
			logger.LogSecurityEvent(r.Context(), m.logger, "admin_access_denied", "MEDIUM", map[string]interface{}{
				"path": r.URL.Path,
				"ip":   ClientIP(r),
			})
			response.AppError(w, apperr.ErrForbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(cookie.AccessTokenName); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func ContextWithUser(ctx context.Context, user *inbound.UserResponse) context.Context {
	return context.WithValue(ctx, authUserKey{}, user)
}

// GetUser returns the authenticated user, or nil outside RequireAuth.
func GetUser(ctx context.Context) *inbound.UserResponse {
	user, _ := ctx.Value(authUserKey{}).(*inbound.UserResponse)
	return user
}

// ClientIP prefers proxy headers and falls back to the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return strings.Trim(ip, "[]")
}
