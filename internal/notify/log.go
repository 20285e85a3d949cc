// README: Logging notification sink used when no broker is configured.
package notify

import (
	"context"

	"go.uber.org/zap"

	"medrush/internal/metrics"
)

type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	l.log.Info("notification",
		zap.String("audience", string(n.Audience)),
		zap.String("order_id", string(n.OrderID)),
		zap.String("kind", n.Kind),
	)
	return nil
}
