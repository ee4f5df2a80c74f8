package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"

	"fleet-console/internal/config"
	"fleet-console/internal/logging"
	"fleet-console/internal/models"
	"fleet-console/internal/utils"
)

// SendEscalation notifies the operations chat that an alert has exhausted its
// reminders without the driver starting the trip. Escalation is disabled when
// no bot token is configured.
func SendEscalation(ctx context.Context, logger *logging.Logger, cfg config.Config, alert models.Alert) error {
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram escalation not configured")
	}
	if cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("missing TELEGRAM_CHAT_ID for escalation")
	}

	// Compose message
	text := fmt.Sprintf(
		"*Overdue job needs attention*\n"+
			"*Job:* %d\n"+
			"*Driver:* %s (%s)\n"+
			"*Passenger:* %s\n"+
			"*Pickup:* %s at %s\n"+
			"*Overdue:* %d min\n"+
			"*Reminders sent:* %d",
		alert.JobID,
		alert.DriverName,
		alert.DriverContact,
		alert.PassengerDetails,
		alert.PickupLocation,
		alert.PickupTime.Format("15:04"),
		alert.ElapsedTime,
		alert.ReminderCount,
	)

	// Retry sending message
	return utils.Retry(logger, 3, time.Second, func() error {
		b, err := bot.New(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    cfg.Telegram.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send escalation for job %d: %w", alert.JobID, err)
		}
		return nil
	})
}
