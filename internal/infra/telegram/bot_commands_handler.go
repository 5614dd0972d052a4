// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"alarm_clock_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	b *telebot.Bot,
	cfg *config.AppConfig, // For OwnerTelegramID
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == cfg.OwnerTelegramID {
			logCtx.Info("User identified as owner")
			return c.Send(fmt.Sprintf("Hi %s! I'm your alarm clock. Use /help to see the commands.", c.Sender().FirstName))
		}

		logCtx.Info("User is unknown")
		return c.Send("Hi! This alarm clock belongs to someone else.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != cfg.OwnerTelegramID {
			logCtx.Info("User is unknown, sending restricted help.")
			return c.Send("There are no commands available for you.")
		}
		return c.Send(helpText(cfg.DefaultSnoozeMinutes, cfg.Location.String()), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func helpText(defaultSnooze int, zone string) string {
	var helpText strings.Builder
	helpText.WriteString("Available commands:\n\n")
	helpText.WriteString("`/add HH:MM [days] [label]`\n - Add an alarm. Days: once, daily, weekdays, weekends or a list like mon,wed,fri.\n\n")
	helpText.WriteString("`/edit <id> HH:MM [days] [label]`\n - Change time, days or label of an alarm. Omitted days and label are kept, `once` makes it one-time.\n\n")
	helpText.WriteString("`/list`\n - Show all alarms.\n\n")
	helpText.WriteString("`/enable <id>`, `/disable <id>`\n - Turn an alarm on or off.\n\n")
	helpText.WriteString("`/delete <id>`\n - Remove an alarm.\n\n")
	helpText.WriteString(fmt.Sprintf("`/snooze <id> <minutes|off>`\n - Set the snooze length (default %d minutes) or turn snooze off.\n\n", defaultSnooze))
	helpText.WriteString(fmt.Sprintf("Times are in %s. When an alarm rings, answer with the Snooze or Dismiss button.", zone))
	return helpText.String()
}
