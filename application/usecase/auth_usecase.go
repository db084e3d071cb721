package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
	apperr "github.com/fashionfolio/portfolio-auth/domain/error"
	"github.com/fashionfolio/portfolio-auth/domain/valueobject"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

// LoginPolicy bounds failed logins per client IP.
type LoginPolicy struct {
	MaxFailedAttempts int
	Window            time.Duration
	BlockDuration     time.Duration
}

var DefaultLoginPolicy = LoginPolicy{
	MaxFailedAttempts: 10,
	Window:            15 * time.Minute,
	BlockDuration:     30 * time.Minute,
}

type AuthUseCase struct {
	userRepository   outbound.UserRepository
	tokenService     outbound.TokenService
	passwordService  outbound.PasswordService
	rateLimitService inbound.RateLimitService
	logger           logger.Logger
	loginPolicy      LoginPolicy
	now              func() time.Time

	decoyOnce sync.Once
	decoyHash string
}

// decoyPassword is hashed once and compared against when the login
// identifier matches no account, so both failure paths pay for bcrypt.
const decoyPassword = "portfolio-auth-decoy-password"

func NewAuthUseCase(
	userRepo outbound.UserRepository,
	tokenService outbound.TokenService,
	passwordService outbound.PasswordService,
	rateLimitService inbound.RateLimitService,
	log logger.Logger,
	loginPolicy LoginPolicy,
) *AuthUseCase {
	if loginPolicy.MaxFailedAttempts <= 0 {
		loginPolicy = DefaultLoginPolicy
	}
	return &AuthUseCase{
		userRepository:   userRepo,
		tokenService:     tokenService,
		passwordService:  passwordService,
		rateLimitService: rateLimitService,
		logger:           log,
		loginPolicy:      loginPolicy,
		now:              time.Now,
	}
}

var _ inbound.AuthUseCase = (*AuthUseCase)(nil)

func (uc *AuthUseCase) Register(ctx context.Context, req inbound.RegisterRequest) (*inbound.SessionResponse, error) {
	registration, err := valueobject.NewRegistration(req.Username, req.Email, req.Password)
	if err != nil {
		return nil, registrationError(err)
	}

	exists, err := uc.userRepository.ExistsByEmailOrUsername(ctx, registration.Email, registration.Username)
	if err != nil {
		uc.logger.Error(ctx, "Failed to check existing user", err, map[string]interface{}{
			"email": registration.Email,
		})
		return nil, apperr.ErrDatabaseError("exists_by_email_or_username", err)
	}
	if exists {
		logger.LogAuthEvent(ctx, uc.logger, "register_duplicate", "", "", false, map[string]interface{}{
			"email":    registration.Email,
			"username": registration.Username,
		})
		return nil, apperr.ErrUserExists()
	}

	start := time.Now()
	hash, err := uc.passwordService.Hash(registration.Password)
	logger.LogPerformance(ctx, uc.logger, "password_hash", time.Since(start), nil)
	if err != nil {
		return nil, apperr.ErrInternalServerError("hash password", err)
	}

	user := entity.NewUser(uuid.NewString(), registration.Username, registration.Email, hash, entity.RoleUser)
	if err := uc.userRepository.Create(ctx, user); err != nil {
		if errors.Is(err, outbound.ErrUserAlreadyExists) {
			return nil, apperr.ErrUserExists()
		}
		uc.logger.Error(ctx, "Failed to create user", err, map[string]interface{}{
			"email": registration.Email,
		})
		return nil, apperr.ErrDatabaseError("create_user", err)
	}

	logger.LogAuthEvent(ctx, uc.logger, "register_successful", user.ID, "", true, map[string]interface{}{
		"username": user.Username,
	})

	return uc.startSession(ctx, user)
}

func (uc *AuthUseCase) Login(ctx context.Context, req inbound.LoginRequest) (*inbound.SessionResponse, error) {
	credentials, err := valueobject.NewCredentials(req.Email, req.Password)
	if err != nil {
		return nil, apperr.ErrInvalidRequest("Please provide email and password", err)
	}

	failKey := failedLoginKey(req.ClientIP)
	if uc.rateLimitService != nil {
		blocked, err := uc.rateLimitService.IsBlocked(ctx, failKey)
		if err != nil {
			uc.logger.Error(ctx, "Failed to check IP block status", err, map[string]interface{}{
				"ip": req.ClientIP,
			})
		}
		if blocked {
			logger.LogSecurityEvent(ctx, uc.logger, "blocked_ip_login_attempt", "MEDIUM", map[string]interface{}{
				"ip": req.ClientIP,
			})
			return nil, apperr.ErrIPBlocked(req.ClientIP)
		}
	}

	user, err := uc.findByIdentifier(ctx, credentials)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			uc.passwordService.Compare(credentials.Password(), uc.decoy(ctx))
			uc.recordFailedLogin(ctx, failKey, req.ClientIP)
			logger.LogAuthEvent(ctx, uc.logger, "login_failed_user_not_found", "", req.ClientIP, false, map[string]interface{}{
				"identifier": credentials.Identifier(),
			})
			return nil, apperr.ErrInvalidCredentials("")
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{
			"identifier": credentials.Identifier(),
		})
		return nil, apperr.ErrDatabaseError("find_user", err)
	}

	start := time.Now()
	valid := uc.passwordService.Compare(credentials.Password(), user.Password)
	logger.LogPerformance(ctx, uc.logger, "password_verification", time.Since(start), map[string]interface{}{
		"user_id": user.ID,
	})
	if !valid {
		uc.recordFailedLogin(ctx, failKey, req.ClientIP)
		logger.LogAuthEvent(ctx, uc.logger, "login_failed_invalid_password", user.ID, req.ClientIP, false, nil)
		return nil, apperr.ErrInvalidCredentials("")
	}

	if uc.rateLimitService != nil {
		if err := uc.rateLimitService.Reset(ctx, failKey); err != nil {
			uc.logger.Warn(ctx, "Failed to reset failed login counter", map[string]interface{}{
				"ip":    req.ClientIP,
				"error": err.Error(),
			})
		}
	}

	session, err := uc.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "login_successful", user.ID, req.ClientIP, true, nil)
	return session, nil
}

func (uc *AuthUseCase) decoy(ctx context.Context) string {
	uc.decoyOnce.Do(func() {
		hash, err := uc.passwordService.Hash(decoyPassword)
		if err != nil {
			uc.logger.Error(ctx, "Failed to hash decoy password", err, nil)
			return
		}
		uc.decoyHash = hash
	})
	return uc.decoyHash
}

// findByIdentifier resolves an identifier as an email first and a username second.
func (uc *AuthUseCase) findByIdentifier(ctx context.Context, credentials *valueobject.Credentials) (*entity.User, error) {
	if credentials.IsEmail() {
		user, err := uc.userRepository.FindByEmail(ctx, credentials.Identifier())
		if err == nil || !errors.Is(err, outbound.ErrUserNotFound) {
			return user, err
		}
	}
	return uc.userRepository.FindByUsername(ctx, credentials.Identifier())
}

func (uc *AuthUseCase) recordFailedLogin(ctx context.Context, key, ip string) {
	if uc.rateLimitService == nil {
		return
	}

	if err := uc.rateLimitService.Increment(ctx, key, uc.loginPolicy.Window); err != nil {
		uc.logger.Error(ctx, "Failed to record failed login", err, map[string]interface{}{"ip": ip})
		return
	}

	allowed, err := uc.rateLimitService.CheckLimit(ctx, key, uc.loginPolicy.MaxFailedAttempts, uc.loginPolicy.Window)
	if err != nil || allowed {
		return
	}

	if err := uc.rateLimitService.Block(ctx, key, uc.loginPolicy.BlockDuration, "too many failed logins"); err != nil {
		uc.logger.Error(ctx, "Failed to block IP", err, map[string]interface{}{"ip": ip})
		return
	}
	logger.LogSecurityEvent(ctx, uc.logger, "ip_login_blocked", "HIGH", map[string]interface{}{
		"ip": ip,
	})
}

// Refresh exchanges a valid refresh token for a new pair. Refresh tokens are
// not tracked, so the presented token stays valid until it expires.
func (uc *AuthUseCase) Refresh(ctx context.Context, req inbound.RefreshRequest) (*inbound.SessionResponse, error) {
	if req.RefreshToken == "" {
		return nil, apperr.ErrMissingToken("refresh token required")
	}

	claims, err := uc.verify(ctx, req.RefreshToken, "refresh")
	if err != nil {
		return nil, err
	}

	user, err := uc.userRepository.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			logger.LogSecurityEvent(ctx, uc.logger, "refresh_user_not_found", "HIGH", map[string]interface{}{
				"user_id": claims.UserID,
			})
			return nil, apperr.ErrInvalidToken(err)
		}
		return nil, apperr.ErrDatabaseError("find_user", err)
	}

	session, err := uc.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	logger.LogAuthEvent(ctx, uc.logger, "token_refresh_successful", user.ID, "", true, nil)
	return session, nil
}

func (uc *AuthUseCase) Profile(ctx context.Context, userID string) (*inbound.UserResponse, error) {
	if userID == "" {
		return nil, apperr.ErrInvalidRequest("user ID is required", nil)
	}

	user, err := uc.userRepository.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, apperr.ErrUserNotFound(userID)
		}
		uc.logger.Error(ctx, "Failed to find user", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, apperr.ErrDatabaseError("find_user", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (uc *AuthUseCase) Authenticate(ctx context.Context, token string) (*inbound.UserResponse, error) {
	if token == "" {
		return nil, apperr.ErrMissingToken("")
	}

	claims, err := uc.verify(ctx, token, "access")
	if err != nil {
		return nil, err
	}

	user, err := uc.userRepository.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, outbound.ErrUserNotFound) {
			return nil, apperr.NewAppError(apperr.ErrCodeInvalidToken, "User not found", "", err)
		}
		return nil, apperr.ErrDatabaseError("find_user", err)
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (uc *AuthUseCase) verify(ctx context.Context, token, kind string) (*outbound.TokenClaims, error) {
	claims, err := uc.tokenService.Verify(token)
	if err == nil {
		return claims, nil
	}

	if errors.Is(err, outbound.ErrTokenExpired) {
		logger.LogAuthEvent(ctx, uc.logger, kind+"_token_expired", "", "", false, nil)
		return nil, apperr.ErrTokenExpired(err)
	}
	logger.LogSecurityEvent(ctx, uc.logger, kind+"_token_invalid", "MEDIUM", nil)
	return nil, apperr.ErrInvalidToken(err)
}

func (uc *AuthUseCase) startSession(ctx context.Context, user *entity.User) (*inbound.SessionResponse, error) {
	start := time.Now()
	pair, err := uc.tokenService.Issue(user.ID)
	logger.LogPerformance(ctx, uc.logger, "token_issue", time.Since(start), map[string]interface{}{
		"user_id": user.ID,
	})
	if err != nil {
		uc.logger.Error(ctx, "Failed to issue tokens", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, apperr.ErrInternalServerError("issue tokens", err)
	}

	now := uc.now()
	return &inbound.SessionResponse{
		User:             toUserResponse(user),
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresIn:  pair.AccessExpiresIn(now),
		RefreshExpiresIn: pair.RefreshExpiresIn(now),
	}, nil
}

func toUserResponse(user *entity.User) inbound.UserResponse {
	return inbound.UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func failedLoginKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return fmt.Sprintf("login_failed:ip:%s", ip)
}

func registrationError(err error) *apperr.AppError {
	switch {
	case errors.Is(err, valueobject.ErrInvalidEmail):
		return apperr.ErrInvalidEmail(err)
	case errors.Is(err, valueobject.ErrPasswordTooShort):
		return apperr.ErrInvalidPassword("Password must be at least 8 characters", err)
	case errors.Is(err, valueobject.ErrPasswordTooLong):
		return apperr.ErrInvalidPassword("Password must be at most 72 bytes", err)
	case errors.Is(err, valueobject.ErrMissingUsername):
		return apperr.ErrInvalidRequest("Username is required", err)
	default:
		return apperr.ErrInvalidRequest("Invalid user data", err)
	}
}
