package outbound

import (
	"context"
	"errors"

	"github.com/fashionfolio/portfolio-auth/domain/entity"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository is the credential store. Lookups by email are
// case-insensitive; usernames are matched exactly.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	Create(ctx context.Context, user *entity.User) error
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}
