package outbound

import (
	"errors"
	"time"

	"github.com/fashionfolio/portfolio-auth/domain/valueobject"
)

// Verification failures. Every failure other than expiry is reported as an
// invalid signature.
var (
	ErrTokenInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired          = errors.New("token expired")
)

// TokenClaims is what a verified token yields. Only the user id is
// carried in the payload; the timestamps come from the standard claims.
type TokenClaims struct {
	UserID    string    `json:"userId"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenIssuer interface {
	Issue(userID string) (*valueobject.TokenPair, error)
}

type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}

type TokenService interface {
	TokenIssuer
	TokenVerifier
}
