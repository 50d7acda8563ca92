package services

import (
	"context"
	"time"

	"order-router/internal/routing/app/core"
	"order-router/internal/routing/domain/dto"
	"order-router/internal/routing/domain/models"
	"order-router/internal/xpkg/logger"
)

func statusMessage(change models.StatusChange) dto.StatusUpdateMessage {
	msg := dto.StatusUpdateMessage{
		OrderID:   change.Order.ID,
		OrderCode: change.Order.OrderCode,
		OldStatus: change.OldStatus,
		NewStatus: change.Order.Status,
		ChangedBy: change.ChangedBy,
		Timestamp: change.Order.UpdatedAt,
	}
	if change.Order.AssignedStoreID != nil {
		msg.StoreID = *change.Order.AssignedStoreID
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	return msg
}

// publishChange notifies subscribers about a committed change. The
// database already holds the new state, so a failed publish is only logged.
func publishChange(ctx context.Context, pub core.IPublisher, mylog logger.Logger, change models.StatusChange) {
	if pub == nil {
		return
	}
	msg := statusMessage(change)
	if err := pub.PublishStatusUpdate(ctx, msg); err != nil {
		mylog.Action("publish_failed").Error("Failed to publish status update", err,
			"order_id", msg.OrderID, "new_status", msg.NewStatus)
		return
	}
	mylog.Action("status_update_published").Debug("Status update published",
		"order_id", msg.OrderID, "old_status", msg.OldStatus, "new_status", msg.NewStatus)
}
