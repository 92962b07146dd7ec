package bot

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
	"gopkg.in/telebot.v3"

	"agency-hub/internal/model"
)

// Sender is the part of *telebot.Bot used to push alerts.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// AlertForwarder posts every stored activity entry to a Telegram chat.
// A zero chat id disables it.
type AlertForwarder struct {
	sender Sender
	chatID atomic.Int64
}

func NewAlertForwarder(sender Sender, chatID int64) *AlertForwarder {
	f := &AlertForwarder{sender: sender}
	f.chatID.Store(chatID)
	return f
}

// SetChat changes the destination chat.
func (f *AlertForwarder) SetChat(chatID int64) {
	f.chatID.Store(chatID)
}

func (f *AlertForwarder) Forward(_ context.Context, log model.ActivityLog) error {
	chatID := f.chatID.Load()
	if chatID == 0 {
		return nil
	}
	_, err := f.sender.Send(telebot.ChatID(chatID), formatAlert(log))
	if err != nil {
		return errors.Annotatef(err, "sending alert to chat %d", chatID)
	}
	return nil
}

func formatAlert(log model.ActivityLog) string {
	msg := "📋 " + log.Description
	if log.SubAccountID != nil {
		msg += fmt.Sprintf("\nSub-account: %s", *log.SubAccountID)
	}
	return msg
}
