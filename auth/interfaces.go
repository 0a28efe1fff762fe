package auth

import "context"

type Service interface {
	Register(ctx context.Context, r RegisterRequest) (string, error)
	Login(ctx context.Context, r LoginRequest) (string, error)
	InitiatePasswordReset(ctx context.Context, emailOrUsername string) error
}

// Directory is the account store. Lookups are scoped to local accounts and
// return ErrNotFound when nothing matches. Create returns ErrDuplicateKey when
// the email or username is already held by a local account.
type Directory interface {
	FindLocalByEmail(ctx context.Context, email string) (*Account, error)
	FindLocalByUsername(ctx context.Context, username string) (*Account, error)
	ExistsLocalByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
	Create(ctx context.Context, acc *Account) (*Account, error)
}

// Notifier delivers the out-of-band password reset message.
type Notifier interface {
	SendPasswordReset(ctx context.Context, acc Account) error
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

type LoginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type resetRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
}
