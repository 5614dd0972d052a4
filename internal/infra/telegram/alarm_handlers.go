package telegram

import (
	"context"
	"fmt"

	"alarm_clock_bot/internal/app"
	"alarm_clock_bot/internal/domain/alarm"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterAlarmHandlers registers the alarm management commands.
// Only the owner may use them; the service checks it again.
func RegisterAlarmHandlers(ctx context.Context, b *telebot.Bot, alarmService *app.AlarmService, ownerTelegramID int64, defaultSnoozeMinutes int, baseLogger *logrus.Entry) {
	// owner wraps a handler with logging and the owner check.
	owner := func(command string, h func(c telebot.Context, logCtx *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			logCtx.Info("Command received")
			if c.Sender().ID != ownerTelegramID {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send("You are not allowed to manage alarms.")
			}
			return h(c, logCtx)
		}
	}

	reply := func(c telebot.Context, logCtx *logrus.Entry, a *alarm.Alarm, err error, done string) error {
		if err != nil {
			logWithError := logCtx.WithError(err)
			switch alarm.ErrorCode(err) {
			case alarm.ErrInvalid, alarm.ErrUnknownAlarm, alarm.ErrNotAuthorized:
				logWithError.Warn("Command rejected")
			default:
				logWithError.Error("Command failed")
			}
			return c.Send(errorText(err))
		}
		logCtx.WithField("alarm_id", a.ID).Info(done)
		return c.Send(done + "\n" + formatAlarm(a))
	}

	b.Handle("/add", owner("/add", func(c telebot.Context, logCtx *logrus.Entry) error {
		// Expected format: /add HH:MM [days] [label]
		args, err := parseAlarmArgs(c.Args())
		if err != nil {
			return c.Send(errorText(err) + "\nUsage: /add HH:MM [once|daily|weekdays|weekends|mon,wed,...] [label]")
		}
		a := alarm.NewOneTime(args.Hour, args.Minute, args.Label)
		a.Repeat = args.Repeat
		a.SnoozeMinutes = defaultSnoozeMinutes

		created, err := alarmService.CreateAlarm(ctx, c.Sender().ID, a)
		if created != nil && err != nil {
			// Stored, but left disabled.
			logCtx.WithError(err).WithField("alarm_id", created.ID).Error("Alarm created but not scheduled")
			return c.Send(errorText(err) + "\n" + formatAlarm(created))
		}
		return reply(c, logCtx, created, err, "Alarm added.")
	}))

	b.Handle("/edit", owner("/edit", func(c telebot.Context, logCtx *logrus.Entry) error {
		// Expected format: /edit <id> HH:MM [days] [label]
		usage := "Usage: /edit <id> HH:MM [days] [label]"
		if len(c.Args()) < 2 {
			return c.Send(usage)
		}
		id, err := parseAlarmID(c.Args()[0])
		if err != nil {
			return c.Send("Alarm id must be a number.\n" + usage)
		}
		args, err := parseAlarmArgs(c.Args()[1:])
		if err != nil {
			return c.Send(errorText(err) + "\n" + usage)
		}
		a, err := alarmService.GetAlarm(ctx, c.Sender().ID, id)
		if err != nil {
			return reply(c, logCtx, nil, err, "")
		}
		applyEdit(a, args)
		updated, err := alarmService.UpdateAlarm(ctx, c.Sender().ID, a)
		return reply(c, logCtx, updated, err, "Alarm updated.")
	}))

	b.Handle("/snooze", owner("/snooze", func(c telebot.Context, logCtx *logrus.Entry) error {
		// Expected format: /snooze <id> <minutes|off>
		usage := "Usage: /snooze <id> <minutes|off>"
		if len(c.Args()) != 2 {
			return c.Send(usage)
		}
		id, err := parseAlarmID(c.Args()[0])
		if err != nil {
			return c.Send("Alarm id must be a number.\n" + usage)
		}
		enabled, minutes, err := parseSnoozeArg(c.Args()[1])
		if err != nil {
			return c.Send(errorText(err))
		}
		a, err := alarmService.GetAlarm(ctx, c.Sender().ID, id)
		if err != nil {
			return reply(c, logCtx, nil, err, "")
		}
		a.SnoozeEnabled = enabled
		if enabled {
			a.SnoozeMinutes = minutes
		}
		updated, err := alarmService.UpdateAlarm(ctx, c.Sender().ID, a)
		return reply(c, logCtx, updated, err, "Snooze updated.")
	}))

	toggle := func(command string, enabled bool, done string) {
		b.Handle(command, owner(command, func(c telebot.Context, logCtx *logrus.Entry) error {
			if len(c.Args()) != 1 {
				return c.Send(fmt.Sprintf("Usage: %s <id>", command))
			}
			id, err := parseAlarmID(c.Args()[0])
			if err != nil {
				return c.Send("Alarm id must be a number.")
			}
			a, err := alarmService.SetEnabled(ctx, c.Sender().ID, id, enabled)
			return reply(c, logCtx, a, err, done)
		}))
	}
	toggle("/enable", true, "Alarm enabled.")
	toggle("/disable", false, "Alarm disabled.")

	b.Handle("/delete", owner("/delete", func(c telebot.Context, logCtx *logrus.Entry) error {
		if len(c.Args()) != 1 {
			return c.Send("Usage: /delete <id>")
		}
		id, err := parseAlarmID(c.Args()[0])
		if err != nil {
			return c.Send("Alarm id must be a number.")
		}
		a, err := alarmService.DeleteAlarm(ctx, c.Sender().ID, id)
		return reply(c, logCtx, a, err, "Alarm deleted.")
	}))

	b.Handle("/list", owner("/list", func(c telebot.Context, logCtx *logrus.Entry) error {
		alarms, err := alarmService.ListAlarms(ctx, c.Sender().ID)
		if err != nil {
			logCtx.WithError(err).Error("Failed to get list of alarms")
			return c.Send(errorText(err))
		}
		logCtx.WithField("alarms_count", len(alarms)).Info("Successfully retrieved alarm list")
		return c.Send(formatAlarmList(alarms))
	}))
}
