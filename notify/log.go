package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimiolaniyan/authcore/auth"
)

// LogNotifier writes reset requests to the log instead of sending them. Used in development.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, acc auth.Account) error {
	msg := newPasswordResetMessage(acc, time.Now())
	n.logger.Info().
		Str("message_id", msg.ID).
		Str("account_id", msg.AccountID).
		Str("email", msg.Email).
		Str("username", msg.Username).
		Msg("password reset requested")
	return nil
}
