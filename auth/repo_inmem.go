package auth

import (
	"context"
	"sync"
)

type accountRepository struct {
	mu       sync.RWMutex
	accounts map[ID]*Account
}

func NewAccountRepository() Directory {
	return &accountRepository{accounts: map[ID]*Account{}}
}

func (repo *accountRepository) Create(_ context.Context, acc *Account) (*Account, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	if acc.Origin == OriginLocal && repo.localMatch(acc.Credentials.Email, acc.Credentials.Username) != nil {
		return nil, ErrDuplicateKey
	}
	if acc.ID == "" {
		acc.ID = NewID()
	}
	if _, taken := repo.accounts[acc.ID]; taken {
		return nil, ErrDuplicateKey
	}

	stored := *acc
	repo.accounts[stored.ID] = &stored
	saved := stored
	return &saved, nil
}

func (repo *accountRepository) FindLocalByEmail(_ context.Context, email string) (*Account, error) {
	return repo.find(func(a *Account) bool { return a.Credentials.Email == email })
}

func (repo *accountRepository) FindLocalByUsername(_ context.Context, username string) (*Account, error) {
	return repo.find(func(a *Account) bool { return a.Credentials.Username == username })
}

func (repo *accountRepository) ExistsLocalByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	return repo.localMatch(email, username) != nil, nil
}

func (repo *accountRepository) find(match func(*Account) bool) (*Account, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	for _, v := range repo.accounts {
		if v.Origin == OriginLocal && match(v) {
			acc := *v
			return &acc, nil
		}
	}
	return nil, ErrNotFound
}

func (repo *accountRepository) localMatch(email, username string) *Account {
	for _, v := range repo.accounts {
		if v.Origin != OriginLocal {
			continue
		}
		if v.Credentials.Email == email || v.Credentials.Username == username {
			return v
		}
	}
	return nil
}
