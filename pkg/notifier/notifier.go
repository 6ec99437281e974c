package notifier

import (
	"context"

	"github.com/google/uuid"

	"github.com/sandaruwanb/lankamart-backend/pkg/logger"
)

// Notifier publishes customer and supplier facing events. Implementations
// must not block the calling request path on delivery.
type Notifier interface {
	OrderPlaced(ctx context.Context, orderID uuid.UUID, orderNumber string)
	OrderStatusChanged(ctx context.Context, orderID uuid.UUID, from, to string)
	PurchaseRequestDecided(ctx context.Context, requestID uuid.UUID, status string)
}

// LogNotifier writes events to the structured log. It is the default sink
// until an email or SMS provider is wired up.
type LogNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier builds the logging sink.
func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, orderID uuid.UUID, orderNumber string) {
	if n == nil || n.logg == nil {
		return
	}
	ctx = n.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "order_number": orderNumber})
	n.logg.Info(ctx, "order placed notification")
}

func (n *LogNotifier) OrderStatusChanged(ctx context.Context, orderID uuid.UUID, from, to string) {
	if n == nil || n.logg == nil {
		return
	}
	ctx = n.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "from": from, "to": to})
	n.logg.Info(ctx, "order status notification")
}

func (n *LogNotifier) PurchaseRequestDecided(ctx context.Context, requestID uuid.UUID, status string) {
	if n == nil || n.logg == nil {
		return
	}
	ctx = n.logg.WithFields(ctx, map[string]any{"request_id": requestID.String(), "status": status})
	n.logg.Info(ctx, "purchase request notification")
}
