package auth

import (
	"errors"
	"time"

	"github.com/rs/xid"
)

type Account struct {
	ID          ID
	Credentials Credentials
	Name        string
	Role        Role
	Origin      Origin
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ID string

//Credentials holds the account's sensitive information
type Credentials struct {
	Email,
	Username,
	PasswordHash string
}

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Origin records where an account came from. Only local accounts log in with a password.
type Origin string

const (
	OriginGoogle Origin = "google"
	OriginLocal  Origin = "local"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

var (
	ErrAlreadyExists      = errors.New("user already exists")
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid password")
	ErrDuplicateKey       = errors.New("duplicate account key")
	ErrHashing            = errors.New("error hashing password")
	ErrSecretTooLong      = errors.New("password too long to hash")
	ErrSigning            = errors.New("error signing token")
	ErrInvalidToken       = errors.New("invalid token")
)

// Field names the request input that failed validation.
type Field string

const (
	FieldEmail      Field = "email"
	FieldPassword   Field = "password"
	FieldUsername   Field = "username"
	FieldIdentifier Field = "emailOrUsername"
)

type ValidationError struct {
	Field Field
}

func (e *ValidationError) Error() string {
	if e.Field == FieldIdentifier {
		return "invalid email or username"
	}
	return "invalid " + string(e.Field)
}

// IsValidationError reports whether err is a *ValidationError and returns it.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

//NewLocalAccount returns an active, user-role local account with fresh timestamps.
func NewLocalAccount(email, username, passwordHash string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:          NewID(),
		Credentials: Credentials{Email: email, Username: username, PasswordHash: passwordHash},
		Role:        RoleUser,
		Origin:      OriginLocal,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (a *Account) Claims() Claims {
	return Claims{Username: a.Credentials.Username, Email: a.Credentials.Email}
}

func NewID() ID {
	return ID(xid.New().String())
}

func isValidID(id string) bool {
	if _, err := xid.FromString(id); err != nil {
		return false
	}
	return true
}
