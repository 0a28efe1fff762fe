package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/oops"
)

type service struct {
	accounts Directory
	hasher   Hasher
	tokens   Issuer
	notifier Notifier
	logger   zerolog.Logger
}

func NewService(accounts Directory, hasher Hasher, tokens Issuer, notifier Notifier, logger zerolog.Logger) Service {
	return &service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
	}
}

func (svc *service) Register(ctx context.Context, r RegisterRequest) (string, error) {
	if err := validateRegistration(r); err != nil {
		return "", err
	}

	exists, err := svc.accounts.ExistsLocalByEmailOrUsername(ctx, r.Email, r.Username)
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "check existing").Wrap(err)
	}
	if exists {
		return "", ErrAlreadyExists
	}

	hash, err := svc.hasher.Hash(r.Password)
	if errors.Is(err, ErrSecretTooLong) {
		return "", &ValidationError{Field: FieldPassword}
	}
	if err != nil {
		return "", err
	}

	acc := NewLocalAccount(r.Email, r.Username, hash)
	acc.Name = r.Name

	saved, err := svc.accounts.Create(ctx, acc)
	if errors.Is(err, ErrDuplicateKey) {
		return "", ErrAlreadyExists
	}
	if err != nil {
		return "", oops.Code("AUTH_REGISTER_FAILED").With("operation", "create account").Wrap(err)
	}

	return svc.tokens.Issue(saved.Claims())
}

func validateRegistration(r RegisterRequest) error {
	if !IsValidEmail(r.Email) {
		return &ValidationError{Field: FieldEmail}
	}
	if !IsValidPassword(r.Password) {
		return &ValidationError{Field: FieldPassword}
	}
	if !IsValidUsername(r.Username) {
		return &ValidationError{Field: FieldUsername}
	}
	return nil
}

func (svc *service) Login(ctx context.Context, r LoginRequest) (string, error) {
	acc, err := svc.findLocal(ctx, r.EmailOrUsername)
	if err != nil {
		return "", err
	}

	if !svc.hasher.Verify(r.Password, acc.Credentials.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	return svc.tokens.Issue(acc.Claims())
}

func (svc *service) InitiatePasswordReset(ctx context.Context, emailOrUsername string) error {
	acc, err := svc.findLocal(ctx, emailOrUsername)
	if err != nil {
		return err
	}

	if err := svc.notifier.SendPasswordReset(ctx, *acc); err != nil {
		svc.logger.Error().Err(err).
			Str("account_id", string(acc.ID)).
			Msg("password reset notification failed")
	}
	return nil
}

// findLocal classifies the identifier and looks the local account up by that field.
func (svc *service) findLocal(ctx context.Context, emailOrUsername string) (*Account, error) {
	var (
		acc *Account
		err error
	)

	switch ClassifyIdentifier(emailOrUsername) {
	case IdentifierEmail:
		acc, err = svc.accounts.FindLocalByEmail(ctx, emailOrUsername)
	case IdentifierUsername:
		acc, err = svc.accounts.FindLocalByUsername(ctx, emailOrUsername)
	default:
		return nil, &ValidationError{Field: FieldIdentifier}
	}

	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("identifier", emailOrUsername).Wrap(err)
	}
	return acc, nil
}
