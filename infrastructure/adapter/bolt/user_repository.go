// Package bolt stores users in an embedded bbolt file. It is meant for
// single-node deployments and local development where Postgres is overkill.
package bolt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/fashionfolio/portfolio-auth/application/port/outbound"
	"github.com/fashionfolio/portfolio-auth/domain/entity"
)

var (
	bktUsers      = []byte("users")
	bktByEmail    = []byte("users_by_email")
	bktByUsername = []byte("users_by_username")
)

type UserRepository struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path and makes sure all buckets exist.
func Open(path string) (*UserRepository, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open bolt db")
	}

	repo, err := NewUserRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func NewUserRepository(db *bolt.DB) (*UserRepository, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bktUsers, bktByEmail, bktByUsername} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &UserRepository{db: db}, nil
}

func (r *UserRepository) Close() error {
	return r.db.Close()
}

// Ping checks that the file is readable and the users bucket is present.
func (r *UserRepository) Ping(ctx context.Context) error {
	return r.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(bktUsers) == nil {
			return errors.New("users bucket missing")
		}
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if id == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	var user *entity.User
	err := r.db.View(func(tx *bolt.Tx) error {
		var err error
		user, err = getUser(tx, []byte(id))
		return err
	})
	return user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if email == "" {
		return nil, errors.New("email cannot be empty")
	}
	return r.findByIndex(bktByEmail, emailKey(email))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	if username == "" {
		return nil, errors.New("username cannot be empty")
	}
	return r.findByIndex(bktByUsername, []byte(username))
}

func (r *UserRepository) findByIndex(bucket, key []byte) (*entity.User, error) {
	var user *entity.User
	err := r.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucket).Get(key)
		if id == nil {
			return outbound.ErrUserNotFound
		}
		var err error
		user, err = getUser(tx, id)
		return err
	})
	return user, err
}

// Create inserts user and both index entries in a single transaction.
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if user.ID == "" || user.Email == "" || user.Username == "" || user.Password == "" {
		return errors.New("user ID, username, email, and password are required")
	}

	data, err := json.Marshal(storedUser{
		User:     *user,
		Password: user.Password,
	})
	if err != nil {
		return errors.Wrap(err, "marshaling user")
	}

	return r.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(bktUsers)
		byEmail := tx.Bucket(bktByEmail)
		byUsername := tx.Bucket(bktByUsername)

		id := []byte(user.ID)
		if users.Get(id) != nil ||
			byEmail.Get(emailKey(user.Email)) != nil ||
			byUsername.Get([]byte(user.Username)) != nil {
			return outbound.ErrUserAlreadyExists
		}

		if err := users.Put(id, data); err != nil {
			return errors.Wrap(err, "saving user")
		}
		if err := byEmail.Put(emailKey(user.Email), id); err != nil {
			return errors.Wrap(err, "indexing email")
		}
		if err := byUsername.Put([]byte(user.Username), id); err != nil {
			return errors.Wrap(err, "indexing username")
		}
		return nil
	})
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.View(func(tx *bolt.Tx) error {
		if email != "" && tx.Bucket(bktByEmail).Get(emailKey(email)) != nil {
			exists = true
			return nil
		}
		if username != "" && tx.Bucket(bktByUsername).Get([]byte(username)) != nil {
			exists = true
		}
		return nil
	})
	return exists, err
}

// storedUser keeps the password hash, which entity.User hides from JSON.
type storedUser struct {
	entity.User
	Password string `json:"password"`
}

func getUser(tx *bolt.Tx, id []byte) (*entity.User, error) {
	data := tx.Bucket(bktUsers).Get(id)
	if data == nil {
		return nil, outbound.ErrUserNotFound
	}

	var stored storedUser
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrapf(err, "decoding user %s", id)
	}
	user := stored.User
	user.Password = stored.Password
	return &user, nil
}

func emailKey(email string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(email)))
}
