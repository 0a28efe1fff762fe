package auth

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLocalAccount(t *testing.T) {
	before := time.Now().UTC()
	acc := NewLocalAccount("a@b.com", "ab1", "hash")

	assert.True(t, isValidID(string(acc.ID)))
	assert.Equal(t, Credentials{Email: "a@b.com", Username: "ab1", PasswordHash: "hash"}, acc.Credentials)
	assert.Equal(t, RoleUser, acc.Role)
	assert.Equal(t, OriginLocal, acc.Origin)
	assert.Equal(t, StatusActive, acc.Status)
	assert.False(t, acc.CreatedAt.Before(before))
	assert.Equal(t, acc.CreatedAt, acc.UpdatedAt)
	assert.Equal(t, Claims{Username: "ab1", Email: "a@b.com"}, acc.Claims())
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		field Field
		want  string
	}{
		{FieldEmail, "invalid email"},
		{FieldPassword, "invalid password"},
		{FieldUsername, "invalid username"},
		{FieldIdentifier, "invalid email or username"},
	}

	for _, tt := range tests {
		err := fmt.Errorf("register: %w", &ValidationError{Field: tt.field})

		ve, ok := IsValidationError(err)
		assert.True(t, ok)
		assert.Equal(t, tt.field, ve.Field)
		assert.Equal(t, tt.want, ve.Error())
	}

	_, ok := IsValidationError(errors.New("other"))
	assert.False(t, ok)
}
