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

// SyncService is the part of the application service the handler calls
type SyncService interface {
	SyncOrders(ctx context.Context, userID uuid.UUID) (*appintegration.OrdersSummary, error)
	SyncPlatformCategories(ctx context.Context, req appintegration.SyncCategoriesRequest) (*appintegration.CategorySyncSummary, error)
	ListCategories(ctx context.Context, userID uuid.UUID, platform integration.PlatformType) ([]appintegration.CategoryDTO, error)
}

// SyncHandler serves the sync endpoints. Every route expects the user id
// set by middleware.RequireUser.
type SyncHandler struct {
	BaseHandler
	service SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncOrders pulls the orders of every active connection of the user.
// A run where connections failed is still a 200; the summary reports them.
//
// POST /api/v1/sync/orders
func (h *SyncHandler) SyncOrders(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	summary, err := h.service.SyncOrders(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// SyncCategories syncs the category taxonomy of one connection
//
// POST /api/v1/sync/categories
func (h *SyncHandler) SyncCategories(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req dto.SyncCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	platform, err := integration.ParsePlatformType(req.PlatformType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	var connectionID uuid.UUID
	if req.ConnectionID != "" {
		if connectionID, err = uuid.Parse(req.ConnectionID); err != nil {
			h.HandleError(c, integration.ErrInvalidConnectionID)
			return
		}
	}

	summary, err := h.service.SyncPlatformCategories(c.Request.Context(), appintegration.SyncCategoriesRequest{
		PlatformType: platform,
		UserID:       userID,
		ConnectionID: connectionID,
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListCategories returns the stored taxonomy of the user, optionally for
// one platform
//
// GET /api/v1/categories?platform_type=
func (h *SyncHandler) ListCategories(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var query dto.ListCategoriesQuery
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

	categories, err := h.service.ListCategories(c.Request.Context(), userID, platform)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, categories)
}
