// Package mongodb stores accounts in a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jimiolaniyan/authcore/auth"
)

type accountRepository struct {
	collection *mongo.Collection
}

type dbAccount struct {
	ID          auth.ID   `bson:"_id"`
	Email       string    `bson:"email"`
	Username    string    `bson:"username"`
	Password    string    `bson:"password,omitempty"`
	Name        string    `bson:"name,omitempty"`
	Role        string    `bson:"role"`
	AccountType string    `bson:"accountType"`
	Status      string    `bson:"accountStatus"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func NewAccountRepository(c *mongo.Collection) auth.Directory {
	return &accountRepository{collection: c}
}

// EnsureIndexes creates the unique email and username indexes, limited to local accounts.
func EnsureIndexes(ctx context.Context, c *mongo.Collection) error {
	local := bson.M{"accountType": string(auth.OriginLocal)}
	_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_local_email").SetUnique(true).SetPartialFilterExpression(local),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("uniq_local_username").SetUnique(true).SetPartialFilterExpression(local),
		},
	})
	if err != nil {
		return oops.Code("ACCOUNT_INDEX_FAILED").With("collection", c.Name()).Wrap(err)
	}
	return nil
}

func (m *accountRepository) FindLocalByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return m.findLocalBy(ctx, "email", email)
}

func (m *accountRepository) FindLocalByUsername(ctx context.Context, username string) (*auth.Account, error) {
	return m.findLocalBy(ctx, "username", username)
}

func (m *accountRepository) ExistsLocalByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	n, err := m.collection.CountDocuments(ctx, emailOrUsernameFilter(email, username), options.Count().SetLimit(1))
	if err != nil {
		return false, oops.Code("ACCOUNT_EXISTS_FAILED").With("email", email).With("username", username).Wrap(err)
	}
	return n > 0, nil
}

func (m *accountRepository) Create(ctx context.Context, acc *auth.Account) (*auth.Account, error) {
	if acc.ID == "" {
		acc.ID = auth.NewID()
	}
	dba := dbAccountFromAccount(acc)

	if _, err := m.collection.InsertOne(ctx, &dba); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, auth.ErrDuplicateKey
		}
		return nil, oops.Code("ACCOUNT_CREATE_FAILED").With("username", dba.Username).Wrap(err)
	}

	saved := accountFromDBAccount(dba)
	return &saved, nil
}

func (m *accountRepository) findLocalBy(ctx context.Context, key, val string) (*auth.Account, error) {
	var dba dbAccount
	err := m.collection.FindOne(ctx, localFilter(key, val)).Decode(&dba)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_FAILED").With(key, val).Wrap(err)
	}

	acc := accountFromDBAccount(dba)
	return &acc, nil
}

func localFilter(key, val string) bson.M {
	return bson.M{key: val, "accountType": string(auth.OriginLocal)}
}

func emailOrUsernameFilter(email, username string) bson.M {
	return bson.M{"$or": bson.A{
		localFilter("email", email),
		localFilter("username", username),
	}}
}

func dbAccountFromAccount(a *auth.Account) dbAccount {
	return dbAccount{
		ID:          a.ID,
		Email:       a.Credentials.Email,
		Username:    a.Credentials.Username,
		Password:    a.Credentials.PasswordHash,
		Name:        a.Name,
		Role:        string(a.Role),
		AccountType: string(a.Origin),
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func accountFromDBAccount(d dbAccount) auth.Account {
	return auth.Account{
		ID:          d.ID,
		Credentials: auth.Credentials{Email: d.Email, Username: d.Username, PasswordHash: d.Password},
		Name:        d.Name,
		Role:        auth.Role(d.Role),
		Origin:      auth.Origin(d.AccountType),
		Status:      auth.Status(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}
