package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/logger"
)

// MessageNoConnections is returned when a user has nothing to sync
const MessageNoConnections = "no platform connections configured"

// SyncRunner runs connection sync jobs
type SyncRunner interface {
	SyncOrders(ctx context.Context, conns []*integration.PlatformConnection) []*integration.SyncResult
	SyncCategories(ctx context.Context, conn *integration.PlatformConnection) *integration.SyncResult
}

// SyncServiceConfig contains configuration for SyncService
type SyncServiceConfig struct {
	// CategoryTTL is how long a synced taxonomy is served from the store.
	// Zero always syncs.
	CategoryTTL time.Duration
}

// DefaultSyncServiceConfig returns default configuration
func DefaultSyncServiceConfig() SyncServiceConfig {
	return SyncServiceConfig{
		CategoryTTL: 24 * time.Hour,
	}
}

// SyncService is the entry point of the sync engine. It resolves a user's
// connections, hands them to the runner and summarizes the outcome.
type SyncService struct {
	runner      SyncRunner
	connections integration.ConnectionRepository
	categories  integration.CategoryRepository
	freshness   integration.CategoryFreshnessStore
	logger      *zap.Logger
	config      SyncServiceConfig
	now         func() time.Time
}

// NewSyncService creates a new SyncService. freshness may be nil, in which
// case every category request syncs.
func NewSyncService(
	runner SyncRunner,
	connections integration.ConnectionRepository,
	categories integration.CategoryRepository,
	freshness integration.CategoryFreshnessStore,
	logger *zap.Logger,
	config SyncServiceConfig,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CategoryTTL < 0 {
		config.CategoryTTL = 0
	}
	return &SyncService{
		runner:      runner,
		connections: connections,
		categories:  categories,
		freshness:   freshness,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// SyncOrders syncs the orders of every active connection of the user
func (s *SyncService) SyncOrders(ctx context.Context, userID uuid.UUID) (*OrdersSummary, error) {
	if userID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}

	conns, err := s.connections.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	if len(conns) == 0 {
		return &OrdersSummary{
			Success:   false,
			Message:   MessageNoConnections,
			Platforms: []PlatformSummary{},
		}, nil
	}

	ctx, _ = logger.WithUserID(ctx, s.logger, userID.String())
	log := logger.WithLogger(ctx, s.logger)
	log.Info("Syncing orders", zap.Int("connection_count", len(conns)))

	summary := Aggregate(s.runner.SyncOrders(ctx, conns))

	log.Info("Order sync finished",
		zap.Bool("success", summary.Success),
		zap.Int("synced_count", summary.SyncedCount),
		zap.Int("error_count", summary.ErrorCount),
	)
	return summary, nil
}

// SyncUserOrders runs SyncOrders and reports a run where every connection
// failed as an error. It matches the periodic trigger's callback.
func (s *SyncService) SyncUserOrders(ctx context.Context, userID uuid.UUID) error {
	summary, err := s.SyncOrders(ctx, userID)
	if err != nil {
		return err
	}
	if !summary.Success && len(summary.Platforms) > 0 {
		return fmt.Errorf("order sync failed: %s", summary.Message)
	}
	return nil
}

// SyncPlatformCategories syncs one connection's category taxonomy. Unless
// ForceRefresh is set, a taxonomy synced within the configured TTL is
// served from the store.
func (s *SyncService) SyncPlatformCategories(ctx context.Context, req SyncCategoriesRequest) (*CategorySyncSummary, error) {
	if req.UserID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}
	if !req.PlatformType.IsValid() {
		return nil, integration.ErrInvalidPlatformType
	}

	conn, err := s.resolveConnection(ctx, req)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return &CategorySyncSummary{
			Success:    false,
			Message:    MessageNoConnections,
			Categories: []CategoryDTO{},
		}, nil
	}

	ctx, _ = logger.WithUserID(ctx, s.logger, req.UserID.String())
	log := logger.WithLogger(ctx, s.logger).Zap().With(
		zap.String("connection_id", conn.ID.String()),
		zap.String("platform", req.PlatformType.String()),
	)

	// The store keeps one taxonomy per user and platform, shared by every
	// connection on that platform, so freshness is tracked at that scope.
	scope := integration.CategoryScope{UserID: req.UserID, PlatformType: req.PlatformType}
	if !req.ForceRefresh && s.isFresh(ctx, log, scope) {
		categories, err := s.categories.ListByUser(ctx, req.UserID, req.PlatformType)
		if err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		log.Debug("Serving stored categories", zap.Int("count", len(categories)))
		return &CategorySyncSummary{
			Success:         true,
			Message:         "categories are up to date",
			CategoriesCount: len(categories),
			Categories:      ToCategoryDTOs(categories),
			FromStore:       true,
		}, nil
	}

	result := s.runner.SyncCategories(ctx, conn)
	if result.Failed() {
		if s.freshness != nil {
			if err := s.freshness.Invalidate(ctx, scope); err != nil {
				log.Warn("Failed to clear category sync time", zap.Error(err))
			}
		}
		msg := "category sync failed"
		if result.ConnectionError != nil {
			msg = fmt.Sprintf("category sync failed: %s", result.ConnectionError.Error())
		}
		return &CategorySyncSummary{
			Success:    false,
			Message:    msg,
			Categories: []CategoryDTO{},
			ErrorCount: result.ErrorCount() + 1,
			Errors:     result.Errors,
		}, nil
	}

	if s.freshness != nil {
		if err := s.freshness.MarkSynced(ctx, scope, s.now()); err != nil {
			log.Warn("Failed to record category sync time", zap.Error(err))
		}
	}

	categories, err := s.categories.ListByUser(ctx, req.UserID, req.PlatformType)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return &CategorySyncSummary{
		Success:         true,
		Message:         fmt.Sprintf("%d synced, %d errors", result.SyncedCount, result.ErrorCount()),
		CategoriesCount: len(categories),
		Categories:      ToCategoryDTOs(categories),
		ErrorCount:      result.ErrorCount(),
		Errors:          result.Errors,
	}, nil
}

// ListCategories returns the stored taxonomy of a user for one platform, or
// for all platforms when platform is empty
func (s *SyncService) ListCategories(ctx context.Context, userID uuid.UUID, platform integration.PlatformType) ([]CategoryDTO, error) {
	if userID == uuid.Nil {
		return nil, integration.ErrInvalidUserID
	}
	if platform != "" && !platform.IsValid() {
		return nil, integration.ErrInvalidPlatformType
	}
	categories, err := s.categories.ListByUser(ctx, userID, platform)
	if err != nil {
		return nil, err
	}
	return ToCategoryDTOs(categories), nil
}

// resolveConnection returns the requested connection, or the first active
// connection of the platform when none is named. A nil connection means the
// user has none.
func (s *SyncService) resolveConnection(ctx context.Context, req SyncCategoriesRequest) (*integration.PlatformConnection, error) {
	if req.ConnectionID != uuid.Nil {
		conn, err := s.connections.FindByID(ctx, req.ConnectionID)
		if err != nil {
			return nil, err
		}
		if conn.UserID != req.UserID || conn.PlatformType != req.PlatformType {
			return nil, integration.ErrConnectionMismatch
		}
		if !conn.IsActive {
			return nil, nil
		}
		return conn, nil
	}

	conns, err := s.connections.ListActiveByUser(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	for _, c := range conns {
		if c.PlatformType == req.PlatformType {
			return c, nil
		}
	}
	return nil, nil
}

func (s *SyncService) isFresh(ctx context.Context, log *zap.Logger, scope integration.CategoryScope) bool {
	if s.freshness == nil || s.config.CategoryTTL <= 0 {
		return false
	}
	last, ok, err := s.freshness.LastSynced(ctx, scope)
	if err != nil {
		log.Warn("Failed to read category sync time, syncing", zap.Error(err))
		return false
	}
	return ok && s.now().Sub(last) < s.config.CategoryTTL
}
