package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/interfaces/http/dto"
)

// UserIDHeader names the user whose marketplace data a request acts on.
// Authentication happens upstream; the gateway forwards the verified id.
const UserIDHeader = logger.UserIDHeader

const userIDKey = "user_id"

// RequireUser rejects requests without a valid user id header and stores
// the parsed id for handlers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		userID, err := uuid.Parse(raw)
		if raw == "" || err != nil || userID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"A valid "+UserIDHeader+" header is required",
				GetRequestID(c),
			))
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the id stored by RequireUser
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
