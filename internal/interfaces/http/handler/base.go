// Package handler holds the gin handlers of the sync API.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
	"github.com/marketsync/backend/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// userID reads the user set by middleware.RequireUser and answers 401
// when it is missing
func (h *BaseHandler) userID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		h.ErrorWithCode(c, dto.ErrCodeUnauthorized, "A valid "+middleware.UserIDHeader+" header is required")
	}
	return userID, ok
}

// domainErrorCodes maps request-level sync errors to API error codes.
// Connection and item failures are reported inside summaries instead.
var domainErrorCodes = []struct {
	err  error
	code string
}{
	{integration.ErrInvalidUserID, dto.ErrCodeUnauthorized},
	{integration.ErrInvalidPlatformType, dto.ErrCodeInvalidInput},
	{integration.ErrInvalidConnectionID, dto.ErrCodeInvalidInput},
	{integration.ErrConnectionNotFound, dto.ErrCodeNotFound},
	{integration.ErrConnectionMismatch, dto.ErrCodeForbidden},
	{integration.ErrOrderNotFound, dto.ErrCodeNotFound},
}

// HandleError converts service errors to HTTP responses. Unknown errors
// are attached to the gin context, where the request logger and the
// request span pick them up, and reported without detail.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	for _, m := range domainErrorCodes {
		if errors.Is(err, m.err) {
			h.ErrorWithCode(c, m.code, strings.TrimPrefix(m.err.Error(), "integration: "))
			return
		}
	}

	_ = c.Error(err)
	h.ErrorWithCode(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
