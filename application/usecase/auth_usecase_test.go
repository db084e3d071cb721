package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fashionfolio/portfolio-auth/application/port/inbound"
	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
	apperr "github.com/fashionfolio/portfolio-auth/domain/error"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/jwt"
	"github.com/fashionfolio/portfolio-auth/infrastructure/service/logger"
)

type memoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*entity.User
	err   error
}

func newMemoryUserRepository() *memoryUserRepository {
	return &memoryUserRepository{users: make(map[string]*entity.User)}
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if user, ok := r.users[id]; ok {
		return user, nil
	}
	return nil, outbound.ErrUserNotFound
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return nil, outbound.ErrUserNotFound
}

func (r *memoryUserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, outbound.ErrUserNotFound
}

func (r *memoryUserRepository) Create(ctx context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return outbound.ErrUserAlreadyExists
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, user := range r.users {
		if user.Email == strings.ToLower(email) || user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type MockPasswordService struct {
	mock.Mock
}

func (m *MockPasswordService) Hash(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordService) Compare(plaintext, digest string) bool {
	args := m.Called(plaintext, digest)
	return args.Bool(0)
}

type MockRateLimitService struct {
	mock.Mock
}

func (m *MockRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return m.Called(ctx, key, window).Error(0)
}

func (m *MockRateLimitService) Reset(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return m.Called(ctx, key, duration, reason).Error(0)
}

func (m *MockRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	uc        *AuthUseCase
	repo      *memoryUserRepository
	passwords *MockPasswordService
	limiter   *MockRateLimitService
	tokens    *jwt.JWTService
	clock     *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := jwt.NewJWTService(jwt.Config{Secret: "test-secret"}, jwt.WithClock(clock.Now))
	require.NoError(t, err)

	f := &fixture{
		repo:      newMemoryUserRepository(),
		passwords: new(MockPasswordService),
		limiter:   new(MockRateLimitService),
		tokens:    tokens,
		clock:     clock,
	}
	f.uc = NewAuthUseCase(f.repo, tokens, f.passwords, f.limiter, logger.NewNopLogger(), DefaultLoginPolicy)
	f.uc.now = clock.Now
	return f
}

func (f *fixture) seedUser(id, username, email, hash, role string) *entity.User {
	user := entity.NewUser(id, username, email, hash, role)
	f.repo.users[id] = user
	return user
}

func assertAppError(t *testing.T, err error, code apperr.ErrorCode) {
	t.Helper()
	var appErr *apperr.AppError
	require.True(t, errors.As(err, &appErr), "expected *AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestRegister(t *testing.T) {
	t.Run("creates user and issues tokens", func(t *testing.T) {
		f := newFixture(t)
		f.passwords.On("Hash", "password123").Return("hashed", nil)

		session, err := f.uc.Register(context.Background(), inbound.RegisterRequest{
			Username: "ana",
			Email:    "Ana@Example.com",
			Password: "password123",
		})
		require.NoError(t, err)

		assert.Equal(t, "ana", session.User.Username)
		assert.Equal(t, "ana@example.com", session.User.Email)
		assert.Equal(t, entity.RoleUser, session.User.Role)
		assert.NotEmpty(t, session.User.ID)
		assert.Equal(t, 86400, session.AccessExpiresIn)
		assert.Equal(t, 604800, session.RefreshExpiresIn)

		claims, err := f.tokens.Verify(session.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, session.User.ID, claims.UserID)

		stored := f.repo.users[session.User.ID]
		require.NotNil(t, stored)
		assert.Equal(t, "hashed", stored.Password)
		f.passwords.AssertExpectations(t)
	})

	t.Run("rejects duplicate email or username", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)

		_, err := f.uc.Register(context.Background(), inbound.RegisterRequest{
			Username: "someone",
			Email:    "ANA@example.com",
			Password: "password123",
		})
		assertAppError(t, err, apperr.ErrCodeUserExists)

		_, err = f.uc.Register(context.Background(), inbound.RegisterRequest{
			Username: "ana",
			Email:    "other@example.com",
			Password: "password123",
		})
		assertAppError(t, err, apperr.ErrCodeUserExists)
		f.passwords.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("validates input", func(t *testing.T) {
		f := newFixture(t)

		tests := []struct {
			name    string
			req     inbound.RegisterRequest
			code    apperr.ErrorCode
			message string
		}{
			{"missing username", inbound.RegisterRequest{Email: "a@b.co", Password: "password123"}, apperr.ErrCodeInvalidRequest, "Username is required"},
			{"bad email", inbound.RegisterRequest{Username: "a", Email: "nope", Password: "password123"}, apperr.ErrCodeInvalidEmail, "Invalid email format"},
			{"short password", inbound.RegisterRequest{Username: "a", Email: "a@b.co", Password: "short"}, apperr.ErrCodeInvalidPassword, "Password must be at least 8 characters"},
			{"password over bcrypt limit", inbound.RegisterRequest{Username: "a", Email: "a@b.co", Password: strings.Repeat("p", 73)}, apperr.ErrCodeInvalidPassword, "Password must be at most 72 bytes"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.uc.Register(context.Background(), tt.req)
				assertAppError(t, err, tt.code)
				assert.Equal(t, tt.message, err.(*apperr.AppError).Message)
				assert.Equal(t, http.StatusBadRequest, apperr.GetHTTPStatusCode(err))
			})
		}
		f.passwords.AssertNotCalled(t, "Hash", mock.Anything)
	})

	t.Run("accepts password at bcrypt limit", func(t *testing.T) {
		f := newFixture(t)
		longest := strings.Repeat("p", 72)
		f.passwords.On("Hash", longest).Return("hashed", nil)

		_, err := f.uc.Register(context.Background(), inbound.RegisterRequest{
			Username: "ana",
			Email:    "ana@example.com",
			Password: longest,
		})
		require.NoError(t, err)
	})

	t.Run("maps repository failure", func(t *testing.T) {
		f := newFixture(t)
		f.repo.err = errors.New("connection refused")

		_, err := f.uc.Register(context.Background(), inbound.RegisterRequest{
			Username: "ana",
			Email:    "ana@example.com",
			Password: "password123",
		})
		assertAppError(t, err, apperr.ErrCodeDatabaseError)
	})
}

func TestLogin(t *testing.T) {
	const ip = "10.0.0.1"
	failKey := "login_failed:ip:" + ip

	t.Run("by email", func(t *testing.T) {
		f := newFixture(t)
		user := f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(false, nil)
		f.limiter.On("Reset", mock.Anything, failKey).Return(nil)
		f.passwords.On("Compare", "password123", "hashed").Return(true)

		session, err := f.uc.Login(context.Background(), inbound.LoginRequest{
			Email:    "ana@example.com",
			Password: "password123",
			ClientIP: ip,
		})
		require.NoError(t, err)
		assert.Equal(t, user.ID, session.User.ID)

		claims, err := f.tokens.Verify(session.RefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		f.limiter.AssertExpectations(t)
	})

	t.Run("by username", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(false, nil)
		f.limiter.On("Reset", mock.Anything, failKey).Return(nil)
		f.passwords.On("Compare", "password123", "hashed").Return(true)

		session, err := f.uc.Login(context.Background(), inbound.LoginRequest{
			Email:    "ana",
			Password: "password123",
			ClientIP: ip,
		})
		require.NoError(t, err)
		assert.Equal(t, "u1", session.User.ID)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.uc.Login(context.Background(), inbound.LoginRequest{Email: "ana@example.com"})
		assertAppError(t, err, apperr.ErrCodeInvalidRequest)
		assert.Equal(t, "Please provide email and password", err.(*apperr.AppError).Message)
		f.limiter.AssertNotCalled(t, "IsBlocked", mock.Anything, mock.Anything)
	})

	t.Run("wrong password records failure", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(false, nil)
		f.limiter.On("Increment", mock.Anything, failKey, DefaultLoginPolicy.Window).Return(nil)
		f.limiter.On("CheckLimit", mock.Anything, failKey, DefaultLoginPolicy.MaxFailedAttempts, DefaultLoginPolicy.Window).Return(true, nil)
		f.passwords.On("Compare", "wrong-password", "hashed").Return(false)

		_, err := f.uc.Login(context.Background(), inbound.LoginRequest{
			Email:    "ana@example.com",
			Password: "wrong-password",
			ClientIP: ip,
		})
		assertAppError(t, err, apperr.ErrCodeInvalidCredentials)
		assert.Equal(t, "Invalid credentials", err.(*apperr.AppError).Message)
		f.limiter.AssertNotCalled(t, "Block", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.limiter.AssertNotCalled(t, "Reset", mock.Anything, mock.Anything)
	})

	t.Run("unknown user is indistinguishable from wrong password", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(false, nil)
		f.limiter.On("Increment", mock.Anything, failKey, DefaultLoginPolicy.Window).Return(nil)
		f.limiter.On("CheckLimit", mock.Anything, failKey, DefaultLoginPolicy.MaxFailedAttempts, DefaultLoginPolicy.Window).Return(true, nil)
		f.passwords.On("Hash", decoyPassword).Return("decoy-hash", nil).Once()
		f.passwords.On("Compare", "password123", "decoy-hash").Return(false)

		for i := 0; i < 2; i++ {
			_, err := f.uc.Login(context.Background(), inbound.LoginRequest{
				Email:    "ghost@example.com",
				Password: "password123",
				ClientIP: ip,
			})
			assertAppError(t, err, apperr.ErrCodeInvalidCredentials)
		}

		f.passwords.AssertNumberOfCalls(t, "Hash", 1)
		f.passwords.AssertNumberOfCalls(t, "Compare", 2)
	})

	t.Run("blocks after too many failures", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(false, nil)
		f.limiter.On("Increment", mock.Anything, failKey, DefaultLoginPolicy.Window).Return(nil)
		f.limiter.On("CheckLimit", mock.Anything, failKey, DefaultLoginPolicy.MaxFailedAttempts, DefaultLoginPolicy.Window).Return(false, nil)
		f.limiter.On("Block", mock.Anything, failKey, DefaultLoginPolicy.BlockDuration, mock.Anything).Return(nil)
		f.passwords.On("Compare", "wrong-password", "hashed").Return(false)

		_, err := f.uc.Login(context.Background(), inbound.LoginRequest{
			Email:    "ana@example.com",
			Password: "wrong-password",
			ClientIP: ip,
		})
		assertAppError(t, err, apperr.ErrCodeInvalidCredentials)
		f.limiter.AssertCalled(t, "Block", mock.Anything, failKey, DefaultLoginPolicy.BlockDuration, mock.Anything)
	})

	t.Run("blocked IP", func(t *testing.T) {
		f := newFixture(t)
		f.limiter.On("IsBlocked", mock.Anything, failKey).Return(true, nil)

		_, err := f.uc.Login(context.Background(), inbound.LoginRequest{
			Email:    "ana@example.com",
			Password: "password123",
			ClientIP: ip,
		})
		assertAppError(t, err, apperr.ErrCodeIPBlocked)
		f.passwords.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
	})

	t.Run("nil rate limiter", func(t *testing.T) {
		f := newFixture(t)
		f.uc.rateLimitService = nil
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		f.passwords.On("Compare", "wrong-password", "hashed").Return(false)
		f.passwords.On("Compare", "password123", "hashed").Return(true)

		_, err := f.uc.Login(context.Background(), inbound.LoginRequest{Email: "ana", Password: "wrong-password"})
		assertAppError(t, err, apperr.ErrCodeInvalidCredentials)

		_, err = f.uc.Login(context.Background(), inbound.LoginRequest{Email: "ana", Password: "password123"})
		require.NoError(t, err)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("issues a new pair", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)

		pair, err := f.tokens.Issue("u1")
		require.NoError(t, err)

		f.clock.Advance(time.Hour)
		session, err := f.uc.Refresh(context.Background(), inbound.RefreshRequest{RefreshToken: pair.RefreshToken})
		require.NoError(t, err)
		assert.Equal(t, "u1", session.User.ID)
		assert.NotEqual(t, pair.AccessToken, session.AccessToken)
		assert.Equal(t, 86400, session.AccessExpiresIn)
	})

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Refresh(context.Background(), inbound.RefreshRequest{})
		assertAppError(t, err, apperr.ErrCodeMissingToken)
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t)
		f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
		pair, err := f.tokens.Issue("u1")
		require.NoError(t, err)

		f.clock.Advance(8 * 24 * time.Hour)
		_, err = f.uc.Refresh(context.Background(), inbound.RefreshRequest{RefreshToken: pair.RefreshToken})
		assertAppError(t, err, apperr.ErrCodeTokenExpired)
		assert.ErrorIs(t, err, outbound.ErrTokenExpired)
	})

	t.Run("garbage token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.uc.Refresh(context.Background(), inbound.RefreshRequest{RefreshToken: "not.a.token"})
		assertAppError(t, err, apperr.ErrCodeInvalidToken)
		assert.ErrorIs(t, err, outbound.ErrTokenInvalidSignature)
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newFixture(t)
		pair, err := f.tokens.Issue("gone")
		require.NoError(t, err)

		_, err = f.uc.Refresh(context.Background(), inbound.RefreshRequest{RefreshToken: pair.RefreshToken})
		assertAppError(t, err, apperr.ErrCodeInvalidToken)
	})
}

func TestProfile(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleAdmin)

	profile, err := f.uc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana", profile.Username)
	assert.Equal(t, entity.RoleAdmin, profile.Role)

	_, err = f.uc.Profile(context.Background(), "missing")
	assertAppError(t, err, apperr.ErrCodeUserNotFound)

	_, err = f.uc.Profile(context.Background(), "")
	assertAppError(t, err, apperr.ErrCodeInvalidRequest)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	f.seedUser("u1", "ana", "ana@example.com", "hashed", entity.RoleUser)
	pair, err := f.tokens.Issue("u1")
	require.NoError(t, err)

	user, err := f.uc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = f.uc.Authenticate(context.Background(), "")
	assertAppError(t, err, apperr.ErrCodeMissingToken)

	stranger, err := f.tokens.Issue("nobody")
	require.NoError(t, err)
	_, err = f.uc.Authenticate(context.Background(), stranger.AccessToken)
	assertAppError(t, err, apperr.ErrCodeInvalidToken)
	assert.Equal(t, "User not found", err.(*apperr.AppError).Message)

	f.clock.Advance(25 * time.Hour)
	_, err = f.uc.Authenticate(context.Background(), pair.AccessToken)
	assertAppError(t, err, apperr.ErrCodeTokenExpired)
}
