package notify

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/eventbus"
)

// BusNotifier delivers worker notifications over the redis bus. Delivery is
// fire-and-forget: a publish failure is logged and swallowed so the primary
// operation never pays for it.
type BusNotifier struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewBusNotifier(bus *eventbus.Bus, logger *zap.Logger) *BusNotifier {
	return &BusNotifier{bus: bus, logger: logger}
}

func (n *BusNotifier) Notify(ctx context.Context, userID, kind string, videoID uuid.UUID, payload map[string]interface{}) {
	notification := eventbus.Notification{
		UserID:  userID,
		Kind:    kind,
		VideoID: videoID.String(),
		Payload: payload,
	}
	event, err := eventbus.NewEvent(kind, notification)
	if err != nil {
		n.logger.Warn("failed to encode notification", zap.Error(err))
		return
	}
	if err := n.bus.Publish(ctx, eventbus.ChannelNotify, event); err != nil {
		n.logger.Warn("failed to publish notification",
			zap.String("user_id", userID),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
