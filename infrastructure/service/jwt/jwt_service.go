package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/valueobject"
)

const (
	DefaultAccessTokenTTL  = 24 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidSignature = outbound.ErrTokenInvalidSignature
	ErrExpired          = outbound.ErrTokenExpired
	ErrMissingSecret    = errors.New("jwt signing secret is required")
	ErrEmptyUserID      = errors.New("user id cannot be empty")
)

// Config carries everything the service needs. The secret is passed in
// explicitly so tests can run with their own key.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Option func(*JWTService)

// WithClock overrides the time source used for iat/exp and for verification.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) {
		s.now = now
	}
}

type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type userClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

var _ outbound.TokenService = (*JWTService)(nil)

func NewJWTService(cfg Config, opts ...Option) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}

	s := &JWTService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)

	return s, nil
}

// Issue mints an access/refresh pair for userID. Both tokens carry the same
// payload and differ only in expiry.
func (s *JWTService) Issue(userID string) (*valueobject.TokenPair, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	now := s.now()
	accessToken, accessExp, err := s.sign(userID, now, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, refreshExp, err := s.sign(userID, now, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return valueobject.NewTokenPair(accessToken, refreshToken, accessExp, refreshExp), nil
}

func (s *JWTService) sign(userID string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := jwt.NewNumericDate(now.Add(ttl))
	claims := userClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp.Time, nil
}

// Verify checks signature and expiry and returns the embedded claims.
// The only errors are ErrInvalidSignature and ErrExpired.
func (s *JWTService) Verify(tokenString string) (*outbound.TokenClaims, error) {
	claims := &userClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, s.handleValidationError(err)
	}

	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidSignature
	}

	result := &outbound.TokenClaims{UserID: claims.UserID}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

func (s *JWTService) handleValidationError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrExpired
	}
	return ErrInvalidSignature
}
