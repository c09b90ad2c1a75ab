package email

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const reminderEmailTimeout = 5 * time.Second

var ErrNoRecipient = errors.New("recipient has no email address")

// SendReportReminder delivers message and waits for the result so callers
// only record reminders that actually went out.
func SendReportReminder(ctx context.Context, sender Sender, recipient string, message Message) error {
	if sender == nil {
		return errors.New("email sender is not configured")
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return ErrNoRecipient
	}
	if message.Subject == "" || message.Body == "" {
		return errors.New("reminder message is empty")
	}

	sendCtx, cancel := newEmailContext(ctx, reminderEmailTimeout)
	defer cancel()
	if err := sender.Send(sendCtx, recipient, message.Subject, message.Body); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("recipient", recipient).Msg("Report reminder sent")
	return nil
}
