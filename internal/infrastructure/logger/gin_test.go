package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGinMiddleware_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusBadRequest, zapcore.WarnLevel},
		{http.StatusBadGateway, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			base, logs := observed()
			r := gin.New()
			r.Use(GinMiddleware(base))
			r.POST("/api/v1/sync/orders", func(c *gin.Context) {
				if tt.status >= http.StatusBadRequest {
					_ = c.Error(errors.New("sync failed"))
				}
				c.Status(tt.status)
			})

			serve(r, httptest.NewRequest(http.MethodPost, "/api/v1/sync/orders?dry=1", nil))

			require.Equal(t, 1, logs.Len())
			entry := logs.All()[0]
			assert.Equal(t, "HTTP Request", entry.Message)
			assert.Equal(t, tt.level, entry.Level)
			fields := entry.ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, "/api/v1/sync/orders", fields["path"])
			assert.Equal(t, "dry=1", fields["query"])
			if tt.status >= http.StatusBadRequest {
				assert.Contains(t, fields, "errors")
			}
		})
	}
}

func TestGinMiddleware_PropagatesRequestContext(t *testing.T) {
	base, logs := observed()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(GinMiddleware(base))

	var ctxRequestID, ctxUserID string
	r.GET("/api/v1/categories", func(c *gin.Context) {
		ctx := c.Request.Context()
		ctxRequestID = GetRequestID(ctx)
		ctxUserID = GetUserID(ctx)
		FromContext(ctx).Info("handler")
		assert.Same(t, GetGinLogger(c), FromContext(ctx))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
	req.Header.Set(UserIDHeader, "user-5")
	serve(r, req)

	assert.Equal(t, "req-42", ctxRequestID)
	assert.Equal(t, "user-5", ctxUserID)

	require.Equal(t, 2, logs.Len())
	handlerFields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", handlerFields["request_id"])
	assert.Equal(t, "user-5", handlerFields["user_id"])
}

func TestRecovery(t *testing.T) {
	base, logs := observed()
	r := gin.New()
	r.Use(Recovery(base))
	r.GET("/panic", func(c *gin.Context) {
		panic("adapter exploded")
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
	assert.Equal(t, "adapter exploded", logs.All()[0].ContextMap()["error"])
}

func TestGetGinLogger_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))

	c.Set(ginLoggerKey, "wrong type")
	assert.NotNil(t, GetGinLogger(c))

	l := zap.NewNop()
	c.Set(ginLoggerKey, l)
	assert.Same(t, l, GetGinLogger(c))
}
