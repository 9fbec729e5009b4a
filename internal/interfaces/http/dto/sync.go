package dto

// SyncCategoriesRequest is the body of POST /api/v1/sync/categories.
// ConnectionID may be omitted to sync the user's first active connection
// of the platform.
type SyncCategoriesRequest struct {
	PlatformType string `json:"platform_type" binding:"required,platform"`
	ConnectionID string `json:"connection_id" binding:"omitempty,uuid"`
	ForceRefresh bool   `json:"force_refresh"`
}

// ListCategoriesQuery is the query of GET /api/v1/categories. An empty
// platform lists every platform.
type ListCategoriesQuery struct {
	PlatformType string `form:"platform_type" binding:"omitempty,platform"`
}

// ListOrdersQuery is the query of GET /api/v1/orders. An empty platform
// lists every platform; a zero limit takes the service default.
type ListOrdersQuery struct {
	PlatformType string `form:"platform_type" binding:"omitempty,platform"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version,omitempty"`
	Checks   map[string]string `json:"checks"`
	Platform []string          `json:"platforms"`
}
