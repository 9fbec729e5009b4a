package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appintegration "github.com/marketsync/backend/internal/application/integration"
	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// OrderService reads stored canonical orders
type OrderService interface {
	ListOrders(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, limit int) (*appintegration.OrderList, error)
	GetOrder(ctx context.Context, userID uuid.UUID, platform integration.PlatformType, number string) (*appintegration.OrderDTO, error)
}

// OrderHandler serves the stored order endpoints
type OrderHandler struct {
	BaseHandler
	orders OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// ListOrders returns the user's most recent stored orders
//
// GET /api/v1/orders?platform_type=&limit=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var query dto.ListOrdersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	var platform integration.PlatformType
	if query.PlatformType != "" {
		p, err := integration.ParsePlatformType(query.PlatformType)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		platform = p
	}

	list, err := h.orders.ListOrders(c.Request.Context(), userID, platform, query.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, list)
}

// GetOrder returns one stored order
//
// GET /api/v1/orders/:platform/:number
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	platform, err := integration.ParsePlatformType(c.Param("platform"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), userID, platform, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
