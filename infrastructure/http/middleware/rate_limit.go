package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	apperr "github.com/fashionfolio/portfolio-auth/domain/error"
	"github.com/fashionfolio/portfolio-auth/infrastructure/http/response"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

// RateLimitRule limits requests whose path ends in Suffix to Limit per
// Window per client IP. Exceeding it blocks the IP for BlockDuration.
type RateLimitRule struct {
	Name          string
	Suffix        string
	Limit         int
	Window        time.Duration
	BlockDuration time.Duration
}

// DefaultRateLimitRules covers the credential endpoints. loginLimit and
// loginWindow come from configuration.
func DefaultRateLimitRules(loginLimit int, loginWindow, blockDuration time.Duration) []RateLimitRule {
	return []RateLimitRule{
		{Name: "login", Suffix: "/login", Limit: loginLimit, Window: loginWindow, BlockDuration: blockDuration},
		{Name: "register", Suffix: "/register", Limit: 5, Window: time.Hour, BlockDuration: time.Hour},
		{Name: "refresh", Suffix: "/refresh", Limit: 30, Window: time.Hour, BlockDuration: 15 * time.Minute},
	}
}

type RateLimitMiddleware struct {
	rateLimitService inbound.RateLimitService
	logger           logger.Logger
	rules            []RateLimitRule
}

func NewRateLimitMiddleware(rateLimitService inbound.RateLimitService, log logger.Logger, rules []RateLimitRule) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		rateLimitService: rateLimitService,
		logger:           log,
		rules:            rules,
	}
}

func (m *RateLimitMiddleware) ruleFor(path string) (RateLimitRule, bool) {
	path = strings.TrimSuffix(path, "/")
	for _, rule := range m.rules {
		if strings.HasSuffix(path, rule.Suffix) {
			return rule, true
		}
	}
	return RateLimitRule{}, false
}

func (m *RateLimitMiddleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.rateLimitService == nil {
			next.ServeHTTP(w, r)
			return
		}

		rule, ok := m.ruleFor(r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		clientIP := ClientIP(r)
		key := fmt.Sprintf("%s:ip:%s", rule.Name, clientIP)

		// Errors from the limiter fail open.
		isBlocked, err := m.rateLimitService.IsBlocked(ctx, key)
		if err != nil {
			m.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
		}
		if isBlocked {
			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_blocked", "MEDIUM", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})
			tooManyRequests(w, rule)
			return
		}

		allowed, err := m.rateLimitService.CheckLimit(ctx, key, rule.Limit, rule.Window)
		if err != nil {
			m.logger.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
			allowed = true
		}

		if !allowed {
			if err := m.rateLimitService.Block(ctx, key, rule.BlockDuration, "Rate limit exceeded"); err != nil {
				m.logger.Error(ctx, "Failed to block IP", err, map[string]interface{}{
					"ip":  clientIP,
					"key": key,
				})
			}

			logger.LogSecurityEvent(ctx, m.logger, "rate_limit_exceeded", "HIGH", map[string]interface{}{
				"ip":        clientIP,
				"path":      r.URL.Path,
				"key":       key,
				"userAgent": r.UserAgent(),
			})
			tooManyRequests(w, rule)
			return
		}

		if err := m.rateLimitService.Increment(ctx, key, rule.Window); err != nil {
			m.logger.Error(ctx, "Failed to increment rate limit", err, map[string]interface{}{
				"ip":  clientIP,
				"key": key,
			})
		}

		next.ServeHTTP(w, r)
	})
}

func tooManyRequests(w http.ResponseWriter, rule RateLimitRule) {
	w.Header().Set("Retry-After", strconv.Itoa(int(rule.BlockDuration.Seconds())))
	response.AppError(w, apperr.ErrRateLimitExceeded(rule.Limit, rule.Window.String()))
}
