package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/logger"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// OrchestratorConfig
// ---------------------------------------------------------------------------

// OrchestratorConfig holds configuration for the sync orchestrator
type OrchestratorConfig struct {
	// MaxConcurrentJobs is the number of connections synced in parallel
	MaxConcurrentJobs int
	// ConnectionTimeout bounds one connection's whole sync
	ConnectionTimeout time.Duration
	// RetryAttempts is the number of retries after a transient failure
	RetryAttempts int
	// RetryBaseDelay is the first backoff; retry n waits base * 2^(n-1)
	RetryBaseDelay time.Duration
	// RetryMaxDelay caps the backoff
	RetryMaxDelay time.Duration
	// PageSize is the requested order page size, 0 for the platform default
	PageSize int
	// Lookback limits order listings to orders created within the window.
	// Zero fetches the full history.
	Lookback time.Duration
}

// DefaultOrchestratorConfig returns default configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxConcurrentJobs: 5,
		ConnectionTimeout: 10 * time.Minute,
		RetryAttempts:     3,
		RetryBaseDelay:    time.Second,
		RetryMaxDelay:     30 * time.Second,
		PageSize:          integration.DefaultPageSize,
	}
}

// Validate validates the configuration
func (c *OrchestratorConfig) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.ConnectionTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts < 0 || c.RetryBaseDelay < 0 {
		return ErrInvalidConfig
	}
	if c.RetryMaxDelay < c.RetryBaseDelay {
		return ErrInvalidConfig
	}
	if c.PageSize < 0 || c.PageSize > integration.MaxPageSize {
		return ErrInvalidConfig
	}
	if c.Lookback < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// backoff returns the wait before the given retry (1-based)
func (c *OrchestratorConfig) backoff(retry int) time.Duration {
	d := c.RetryBaseDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= c.RetryMaxDelay {
			return c.RetryMaxDelay
		}
	}
	if d > c.RetryMaxDelay {
		return c.RetryMaxDelay
	}
	return d
}

// ---------------------------------------------------------------------------
// Orchestrator
// ---------------------------------------------------------------------------

// ResultRecorder receives every finished connection result
type ResultRecorder interface {
	RecordSyncResult(ctx context.Context, resource string, result *integration.SyncResult)
}

// Orchestrator runs one sync job per platform connection on a bounded pool
// of workers. Each job drives its connection through
// Adapter -> Normalizer -> repository and always ends in COMPLETED or
// FAILED; a failing job never affects the others.
type Orchestrator struct {
	config     OrchestratorConfig
	adapters   integration.AdapterFactory
	normalizer *integration.Normalizer
	orders     integration.OrderRepository
	categories integration.CategoryRepository
	recorder   ResultRecorder
	logger     *zap.Logger
}

// OrchestratorOption configures an Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithResultRecorder reports every finished connection to r
func WithResultRecorder(r ResultRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// NewOrchestrator creates a new orchestrator. A nil normalizer uses the
// default mapping tables.
func NewOrchestrator(
	config OrchestratorConfig,
	adapters integration.AdapterFactory,
	normalizer *integration.Normalizer,
	orders integration.OrderRepository,
	categories integration.CategoryRepository,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if adapters == nil || orders == nil || categories == nil {
		return nil, fmt.Errorf("%w: adapter factory and repositories are required", ErrInvalidConfig)
	}
	if normalizer == nil {
		normalizer = integration.NewNormalizer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		config:     config,
		adapters:   adapters,
		normalizer: normalizer,
		orders:     orders,
		categories: categories,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the orchestrator configuration
func (o *Orchestrator) Config() OrchestratorConfig {
	return o.config
}

// syncBody performs the resource-specific part of a connection job
type syncBody func(ctx context.Context, conn *integration.PlatformConnection, result *integration.SyncResult, log *zap.Logger) error

// SyncOrders syncs the orders of every active connection and returns one
// result per active connection, in input order. Inactive and nil
// connections are skipped. Cancelling ctx stops every job; rows already
// written stay committed.
func (o *Orchestrator) SyncOrders(ctx context.Context, conns []*integration.PlatformConnection) []*integration.SyncResult {
	active := make([]*integration.PlatformConnection, 0, len(conns))
	for _, c := range conns {
		if c == nil || !c.IsActive {
			continue
		}
		active = append(active, c)
	}

	results := make([]*integration.SyncResult, len(active))
	if len(active) == 0 {
		return results
	}

	workers := o.config.MaxConcurrentJobs
	if workers > len(active) {
		workers = len(active)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.runJob(ctx, workerID, active[i], telemetry.ResourceOrders, o.syncOrders)
			}
		}(w)
	}

	for i := range active {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// SyncCategories syncs the category taxonomy of one connection
func (o *Orchestrator) SyncCategories(ctx context.Context, conn *integration.PlatformConnection) *integration.SyncResult {
	if conn == nil {
		return &integration.SyncResult{
			State:           integration.SyncStateFailed,
			ConnectionError: integration.ErrConnectionNotFound,
		}
	}
	return o.runJob(ctx, 0, conn, telemetry.ResourceCategories, o.syncCategories)
}

// runJob runs body for one connection under the connection timeout and turns
// every failure, panics included, into a FAILED result.
func (o *Orchestrator) runJob(ctx context.Context, workerID int, conn *integration.PlatformConnection, resource string, body syncBody) (result *integration.SyncResult) {
	result = integration.NewSyncResult(conn)
	result.StartedAt = time.Now()

	ctx, log := logger.WithUserID(ctx, o.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("resource", resource),
	), conn.UserID.String())
	ctx, log = logger.WithConnection(ctx, log, conn.ID.String(), conn.PlatformType.String())

	ctx, span := telemetry.StartSpan(ctx, "sync."+resource,
		telemetry.SpanAttrConnectionID, conn.ID,
		telemetry.SpanAttrPlatform, conn.PlatformType,
		telemetry.SpanAttrUserID, conn.UserID,
	)
	jobCtx, cancel := context.WithTimeout(ctx, o.config.ConnectionTimeout)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Sync job panicked", zap.Any("panic", r), zap.Stack("stack"))
			result.Fail(fmt.Errorf("%w: %v", ErrJobPanicked, r))
		}
		cancel()
		result.FinishedAt = time.Now()
		o.finish(ctx, log, span, resource, result)
	}()

	log.Debug("Starting connection sync")

	if err := conn.Validate(); err != nil {
		result.Fail(err)
		return result
	}
	if !conn.IsActive {
		result.Fail(integration.ErrConnectionInactive)
		return result
	}

	var bodyErr error
	telemetry.WithProfilingLabels(jobCtx, map[string]string{
		telemetry.ProfilingLabelPlatform: conn.PlatformType.String(),
		telemetry.ProfilingLabelResource: resource,
	}, func(labelled context.Context) {
		bodyErr = body(labelled, conn, result, log)
	})
	if bodyErr != nil {
		result.Fail(o.connectionError(ctx, jobCtx, conn, bodyErr))
		return result
	}
	if !result.State.IsTerminal() {
		if err := result.Transition(integration.SyncStateCompleted); err != nil {
			result.Fail(err)
		}
	}
	return result
}

// connectionError maps an error that ended a job. A cancelled run reports
// the cancellation, an expired job budget reports a TimeoutError.
func (o *Orchestrator) connectionError(parent, jobCtx context.Context, conn *integration.PlatformConnection, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		if errors.Is(err, parentErr) {
			return err
		}
		return parentErr
	}
	if errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return &integration.TimeoutError{
			ConnectionID: conn.ID.String(),
			Limit:        o.config.ConnectionTimeout.String(),
		}
	}
	return err
}

func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, span trace.Span, resource string, result *integration.SyncResult) {
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSyncState, result.State.String(),
		telemetry.SpanAttrSyncedCount, result.SyncedCount,
		telemetry.SpanAttrErrorCount, result.ErrorCount(),
	)

	if result.Failed() {
		telemetry.RecordError(span, result.ConnectionError)
		log.Warn("Connection sync failed",
			zap.String("kind", integration.ErrorKind(result.ConnectionError)),
			zap.Error(result.ConnectionError),
			zap.Int("synced_count", result.SyncedCount),
			zap.Duration("duration", result.Duration()),
		)
	} else {
		telemetry.SetOK(span)
		log.Info("Connection sync completed",
			zap.Int("synced_count", result.SyncedCount),
			zap.Int("unchanged_count", result.UnchangedCount),
			zap.Int("error_count", result.ErrorCount()),
			zap.Int("unmapped_status_count", result.UnmappedStatusCount),
			zap.Duration("duration", result.Duration()),
		)
	}
	span.End()

	if o.recorder != nil {
		o.recorder.RecordSyncResult(ctx, resource, result)
	}
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

func (o *Orchestrator) syncOrders(ctx context.Context, conn *integration.PlatformConnection, result *integration.SyncResult, log *zap.Logger) error {
	adapter, err := o.adapters.NewAdapter(conn.PlatformType)
	if err != nil {
		return err
	}
	if err := adapter.Initialize(ctx, conn); err != nil {
		return err
	}

	params := integration.PageParams{PageSize: o.config.PageSize}
	if o.config.Lookback > 0 {
		params.EndTime = time.Now()
		params.StartTime = params.EndTime.Add(-o.config.Lookback)
	}
	span := trace.SpanFromContext(ctx)

	for pageNo := 1; ; pageNo++ {
		if err := result.Transition(integration.SyncStateFetching); err != nil {
			return err
		}
		page, err := withRetry(ctx, &o.config, log, "fetch orders", func(ctx context.Context) (*integration.OrderPage, error) {
			return adapter.FetchOrders(ctx, params)
		})
		if err != nil {
			return err
		}
		telemetry.AddEvent(span, "page_fetched",
			telemetry.SpanAttrPageToken, params.Token,
			telemetry.SpanAttrRecordCount, len(page.Records),
		)
		log.Debug("Fetched order page",
			zap.Int("page", pageNo),
			zap.Int("records", len(page.Records)),
			zap.Bool("has_more", page.HasMore()),
		)

		if len(page.Records) == 0 && !page.HasMore() {
			return result.Transition(integration.SyncStateCompleted)
		}

		if err := result.Transition(integration.SyncStateTransforming); err != nil {
			return err
		}
		orders := o.normalizeOrders(conn, page.Records, result, log)

		if err := result.Transition(integration.SyncStatePersisting); err != nil {
			return err
		}
		if err := o.persistOrders(ctx, orders, result, log); err != nil {
			return err
		}

		if !page.HasMore() {
			return result.Transition(integration.SyncStateCompleted)
		}
		if page.NextToken == params.Token {
			log.Warn("Platform returned the same page token twice, ending listing",
				zap.String("token", page.NextToken),
			)
			return result.Transition(integration.SyncStateCompleted)
		}
		params.Token = page.NextToken
	}
}

func (o *Orchestrator) normalizeOrders(conn *integration.PlatformConnection, records []integration.RawRecord, result *integration.SyncResult, log *zap.Logger) []*integration.CanonicalOrder {
	orders := make([]*integration.CanonicalOrder, 0, len(records))
	for _, raw := range records {
		order, err := o.normalizer.NormalizeOrder(conn.PlatformType, raw, conn.UserID)
		if err != nil {
			result.AddItemError(itemIDOf(err), err)
			log.Debug("Skipping unmappable order", zap.Error(err))
			continue
		}
		order.ConnectionID = conn.ID
		orders = append(orders, order)
	}
	return orders
}

func (o *Orchestrator) persistOrders(ctx context.Context, orders []*integration.CanonicalOrder, result *integration.SyncResult, log *zap.Logger) error {
	for _, order := range orders {
		outcome, err := o.orders.Upsert(ctx, order)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if integration.IsItemLevel(err) {
				result.AddItemError(order.PlatformOrderNumber, err)
				log.Warn("Failed to persist order",
					zap.String("order_number", order.PlatformOrderNumber),
					zap.Error(err),
				)
				continue
			}
			return err
		}

		result.SyncedCount++
		if outcome == integration.UpsertUnchanged {
			result.UnchangedCount++
		}
		if order.Status == integration.OrderStatusUnknown {
			result.UnmappedStatusCount++
			o.logUnmappedStatus(log, order)
		}
	}
	return nil
}

// logUnmappedStatus reports a raw status missing from the mapping table so
// the table can be extended
func (o *Orchestrator) logUnmappedStatus(log *zap.Logger, order *integration.CanonicalOrder) {
	version := ""
	if table, ok := o.normalizer.Table(order.PlatformType); ok {
		version = table.Version
	}
	log.Warn("Unmapped platform order status",
		zap.String("raw_status", order.RawStatus),
		zap.String("mapping_version", version),
		zap.String("order_number", order.PlatformOrderNumber),
	)
}

// ---------------------------------------------------------------------------
// Categories
// ---------------------------------------------------------------------------

func (o *Orchestrator) syncCategories(ctx context.Context, conn *integration.PlatformConnection, result *integration.SyncResult, log *zap.Logger) error {
	adapter, err := o.adapters.NewAdapter(conn.PlatformType)
	if err != nil {
		return err
	}
	if err := adapter.Initialize(ctx, conn); err != nil {
		return err
	}

	if err := result.Transition(integration.SyncStateFetching); err != nil {
		return err
	}
	records, err := withRetry(ctx, &o.config, log, "fetch categories", func(ctx context.Context) ([]integration.RawRecord, error) {
		return adapter.FetchCategories(ctx)
	})
	if err != nil {
		return err
	}
	log.Debug("Fetched categories", zap.Int("records", len(records)))

	if err := result.Transition(integration.SyncStateTransforming); err != nil {
		return err
	}
	categories := make([]*integration.CanonicalCategory, 0, len(records))
	for _, raw := range records {
		category, err := o.normalizer.NormalizeCategory(conn.PlatformType, raw, conn.UserID)
		if err != nil {
			result.AddItemError(itemIDOf(err), err)
			continue
		}
		categories = append(categories, category)
	}

	if err := result.Transition(integration.SyncStatePersisting); err != nil {
		return err
	}
	batch, err := o.categories.UpsertBatch(ctx, conn.UserID, conn.PlatformType, categories)
	if err != nil {
		return err
	}
	result.SyncedCount += batch.Stored()
	result.UnchangedCount += batch.Unchanged
	result.Errors = append(result.Errors, batch.Errors...)
	log.Debug("Stored categories",
		zap.Int("inserted", batch.Inserted),
		zap.Int("updated", batch.Updated),
		zap.Int("linked", batch.Linked),
		zap.Int("unresolved", batch.Unresolved),
	)

	return result.Transition(integration.SyncStateCompleted)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// withRetry runs fn, retrying transient failures with exponential backoff
// until the retry budget is spent
func withRetry[T any](ctx context.Context, cfg *OrchestratorConfig, log *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for retry := 0; ; retry++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !integration.IsRetryable(err) || retry >= cfg.RetryAttempts {
			return zero, err
		}

		delay := cfg.backoff(retry + 1)
		msg := "Transient platform error, retrying"
		if integration.IsRateLimited(err) {
			msg = "Rate limited by platform, retrying"
		}
		log.Warn(msg,
			zap.String("operation", op),
			zap.Int("retry", retry+1),
			zap.Int("max_retries", cfg.RetryAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// itemIDOf extracts the record identifier carried by item-level errors
func itemIDOf(err error) string {
	var me *integration.MappingError
	if errors.As(err, &me) {
		return me.ItemID
	}
	var pe *integration.PersistenceError
	if errors.As(err, &pe) {
		return pe.ItemID
	}
	return ""
}
