package core

import (
	"context"

	"order-router/internal/routing/domain/dto"
)

type IPublisher interface {
	Close() error
	PublishStatusUpdate(ctx context.Context, message dto.StatusUpdateMessage) error
}
