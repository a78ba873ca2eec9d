package notify

import (
	"context"

	"go.uber.org/zap"

	"foodshare/internal/model"
)

// ConsoleNotifier writes codes to the log. Development only.
type ConsoleNotifier struct {
	log *zap.SugaredLogger
}

// NewConsoleNotifier creates a notifier that logs instead of sending SMS.
func NewConsoleNotifier(log *zap.SugaredLogger) *ConsoleNotifier {
	return &ConsoleNotifier{log: log.With("notifier", "console")}
}

func (n *ConsoleNotifier) Notify(ctx context.Context, phone, code string, purpose model.OTPPurpose) error {
	n.log.Infow("[DEV SMS] "+Message(code, purpose), "phone", phone, "purpose", purpose)
	return nil
}
