package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
)

// Cost is the bcrypt work factor used for every hash.
const Cost = 10

var ErrEmptyPassword = errors.New("password cannot be empty")

type BcryptPasswordService struct {
	cost int
}

var _ outbound.PasswordService = (*BcryptPasswordService)(nil)

func NewBcryptPasswordService() *BcryptPasswordService {
	return &BcryptPasswordService{
		cost: Cost,
	}
}

func (s *BcryptPasswordService) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedPassword), nil
}

// Compare reports whether plaintext matches digest. bcrypt compares the
// derived hashes in constant time; a malformed digest is a mismatch.
func (s *BcryptPasswordService) Compare(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
