// internal/infra/telegram/alarm_response_handlers.go
package telegram

import (
	"context"
	"fmt"
	"strconv"

	"alarm_clock_bot/internal/app" // For Decision
	"alarm_clock_bot/internal/domain/alarm"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// Responder handles the user's answer to a firing alarm.
type Responder interface {
	OnSnoozeResponse(ctx context.Context, id int64) (app.Decision, error)
	OnDismissResponse(ctx context.Context, id int64) (app.Decision, error)
}

func RegisterAlarmResponseHandlers(ctx context.Context, b *telebot.Bot, responder Responder, ownerTelegramID int64, baseLogger *logrus.Entry) {
	handle := func(kind app.ResponseKind, respond func(context.Context, int64) (app.Decision, error)) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   "alarm_response",
				"response":  kind,
				"sender_id": c.Sender().ID,
			})
			if c.Sender().ID != ownerTelegramID {
				logCtx.Warn("Unauthorized access attempt")
				return c.Respond(&telebot.CallbackResponse{Text: "You can't answer this alarm."})
			}

			id, err := parseAlarmID(c.Data())
			if err != nil {
				c.Bot().OnError(fmt.Errorf("invalid alarm id in callback %q: %w", c.Data(), err), c)
				return c.Respond(&telebot.CallbackResponse{Text: "Unknown alarm."})
			}
			logCtx = logCtx.WithField("alarm_id", id)

			d, err := respond(ctx, id)
			if err != nil {
				logCtx.WithError(err).Warn("Response failed")
				return c.Respond(&telebot.CallbackResponse{Text: responseErrorText(err), ShowAlert: true})
			}

			text := responseText(kind, d)
			logCtx.WithField("decision", d.Kind).Info("Response handled")
			// Editing drops the buttons so the alert can't be answered twice.
			if msg := c.Message(); msg != nil {
				if err := c.Edit(msg.Text + "\n\n" + text); err != nil {
					logCtx.WithError(err).Debug("Could not update alert message")
				}
			}
			return c.Respond(&telebot.CallbackResponse{Text: text})
		}
	}

	b.Handle(&btnSnooze, handle(app.ResponseSnooze, responder.OnSnoozeResponse))
	b.Handle(&btnDismiss, handle(app.ResponseDismiss, responder.OnDismissResponse))
}

func parseAlarmID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("alarm id must be positive, got %d", id)
	}
	return id, nil
}

// responseText confirms what a snooze or dismiss did.
func responseText(kind app.ResponseKind, d app.Decision) string {
	switch d.Kind {
	case app.DecisionArmTransient:
		return "Snoozed until " + d.At.Format("15:04") + "."
	case app.DecisionFinalizeOneTime:
		return "Dismissed. The alarm is now off."
	}
	if kind == app.ResponseSnooze {
		return "Snooze is not available for this alarm."
	}
	return "Dismissed."
}

func responseErrorText(err error) string {
	switch alarm.ErrorCode(err) {
	case alarm.ErrUnknownAlarm:
		return "This alarm no longer exists."
	case alarm.ErrSchedulingDenied, alarm.ErrSchedulingUnavailable:
		return "The alarm could not be scheduled: " + alarm.ErrorDescription(err)
	case alarm.ErrStoreUnavailable:
		return "Alarms are temporarily unavailable, please try again."
	}
	return "Something went wrong."
}
