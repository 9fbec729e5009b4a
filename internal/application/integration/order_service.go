package integration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/logger"
)

// Order listing limits
const (
	DefaultOrderListLimit = 50
	MaxOrderListLimit     = 200
)

// OrderService reads the canonical orders stored by the sync runs
type OrderService struct {
	orders integration.OrderRepository
	logger *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(orders integration.OrderRepository, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{orders: orders, logger: log}
}

// ListOrders returns the user's most recent orders, newest first. An empty
// platform lists every platform. limit is clamped to MaxOrderListLimit and
// defaults to DefaultOrderListLimit.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, limit int) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}
	if platform != "" && !platform.IsValid() {
		return nil, integration.ErrInvalidPlatformType
	}
	switch {
	case limit <= 0:
		limit = DefaultOrderListLimit
	case limit > MaxOrderListLimit:
		limit = MaxOrderListLimit
	}

	orders, err := s.orders.ListByUser(ctx, userID, platform, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	total, err := s.orders.CountByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	logger.WithLogger(ctx, s.logger).Debug("Listed stored orders",
		zap.String("platform", platform.String()),
		zap.Int("count", len(orders)),
		zap.Int64("user_total", total),
	)
	return &OrderList{
		Orders:    ToOrderDTOs(orders),
		Count:     len(orders),
		UserTotal: total,
	}, nil
}

// GetOrder returns one stored order by platform and order number
func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, number string) (*OrderDTO, error) {
	if userID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}
	if !platform.IsValid() {
		return nil, integration.ErrInvalidPlatformType
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, integration.ErrOrderNotFound
	}

	order, err := s.orders.FindByKey(ctx, integration.OrderKey{
		UserID:              userID,
		PlatformType:        platform,
		PlatformOrderNumber: number,
	})
	if err != nil {
		return nil, err
	}
	out := ToOrderDTO(order)
	return &out, nil
}
