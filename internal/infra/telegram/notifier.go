package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"alarm_clock_bot/internal/domain/alert"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Callback uniques of the alert buttons. The alarm id travels as the callback payload.
const (
	callbackSnooze  = "snooze"
	callbackDismiss = "dismiss"
)

var (
	btnSnooze  = telebot.Btn{Unique: callbackSnooze}
	btnDismiss = telebot.Btn{Unique: callbackDismiss}
)

// AlertNotifier presents firing alarms as a chat message with Snooze/Dismiss buttons.
type AlertNotifier struct {
	client Sender
	chatID int64
	logger *logrus.Entry
}

var _ alert.Notifier = (*AlertNotifier)(nil)

func NewAlertNotifier(client Sender, chatID int64, logger *logrus.Entry) *AlertNotifier {
	return &AlertNotifier{
		client: client,
		chatID: chatID,
		logger: logger.WithField("component", "alert_notifier"),
	}
}

func (n *AlertNotifier) Present(ctx context.Context, a alert.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.client.SendMessage(n.chatID, alertText(a), &telebot.SendOptions{ReplyMarkup: alertKeyboard(a)})
	if err != nil {
		return fmt.Errorf("send alert for alarm %d: %w", a.AlarmID, err)
	}
	n.logger.WithField("alarm_id", a.AlarmID).Debug("Alert sent")
	return nil
}

func alertText(a alert.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏰ %s  %s", a.Time, a.Text())
	if a.Notice != "" {
		b.WriteString("\n\n⚠️ ")
		b.WriteString(a.Notice)
	}
	return b.String()
}

func alertKeyboard(a alert.Alert) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	id := strconv.FormatInt(a.AlarmID, 10)
	var row telebot.Row
	for _, action := range a.Actions {
		switch action {
		case alert.ActionSnooze:
			row = append(row, markup.Data("Snooze", callbackSnooze, id))
		case alert.ActionDismiss:
			row = append(row, markup.Data("Dismiss", callbackDismiss, id))
		}
	}
	markup.Inline(row)
	return markup
}
