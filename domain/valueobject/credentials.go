package valueobject

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrMissingUsername  = errors.New("username is required")
	ErrMissingLogin     = errors.New("please provide email and password")
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	minPasswordLength = 8
	// bcrypt refuses longer inputs.
	maxPasswordBytes = 72
)

// Credentials is what a caller presents at login. Identifier is either an
// email address or a username.
type Credentials struct {
	identifier string
	password   string
}

func NewCredentials(identifier, password string) (*Credentials, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, ErrMissingLogin
	}
	return &Credentials{
		identifier: identifier,
		password:   password,
	}, nil
}

func (c *Credentials) Identifier() string {
	return c.identifier
}

func (c *Credentials) Password() string {
	return c.password
}

// IsEmail reports whether the identifier looks like an email address.
func (c *Credentials) IsEmail() bool {
	return strings.Contains(c.identifier, "@")
}

// Registration holds validated sign-up input.
type Registration struct {
	Username string
	Email    string
	Password string
}

func NewRegistration(username, email, password string) (*Registration, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" {
		return nil, ErrMissingUsername
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	return &Registration{
		Username: username,
		Email:    email,
		Password: password,
	}, nil
}

func validateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
