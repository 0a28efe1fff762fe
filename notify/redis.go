// Package notify dispatches password reset requests to whatever delivers the email.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/jimiolaniyan/authcore/auth"
)

const TypePasswordReset = "password_reset"

// PasswordResetMessage is the job a mailer worker pops off the queue.
type PasswordResetMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AccountID   string    `json:"accountId"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requestedAt"`
}

func newPasswordResetMessage(acc auth.Account, now time.Time) PasswordResetMessage {
	return PasswordResetMessage{
		ID:          uuid.NewString(),
		Type:        TypePasswordReset,
		AccountID:   string(acc.ID),
		Email:       acc.Credentials.Email,
		Username:    acc.Credentials.Username,
		RequestedAt: now.UTC(),
	}
}

type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisQueue pushes reset messages onto a Redis list.
type RedisQueue struct {
	client listPusher
	key    string
	now    func() time.Time
}

func NewRedisQueue(client listPusher, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key, now: time.Now}
}

func (q *RedisQueue) SendPasswordReset(ctx context.Context, acc auth.Account) error {
	msg := newPasswordResetMessage(acc, q.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("NOTIFY_ENCODE_FAILED").With("message_id", msg.ID).Wrap(err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return oops.Code("NOTIFY_ENQUEUE_FAILED").
			With("queue", q.key).
			With("message_id", msg.ID).
			Wrap(err)
	}
	return nil
}
