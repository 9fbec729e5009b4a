package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/marketsync/backend/internal/domain/integration"
	"github.com/marketsync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func testConfig() OrchestratorConfig {
	cfg := DefaultOrchestratorConfig()
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 4 * time.Millisecond
	cfg.ConnectionTimeout = 5 * time.Second
	return cfg
}

type harness struct {
	factory    *fakeFactory
	orders     *memoryOrderRepo
	categories *memoryCategoryRepo
	recorder   *recordingRecorder
	orch       *Orchestrator
}

func newHarness(t *testing.T, cfg OrchestratorConfig) *harness {
	t.Helper()
	h := &harness{
		factory:    newFakeFactory(),
		orders:     newMemoryOrderRepo(),
		categories: &memoryCategoryRepo{},
		recorder:   &recordingRecorder{},
	}
	orch, err := NewOrchestrator(cfg, h.factory, nil, h.orders, h.categories, zaptest.NewLogger(t), WithResultRecorder(h.recorder))
	require.NoError(t, err)
	h.orch = orch
	return h
}

func (h *harness) connect(userID uuid.UUID, platform integration.PlatformType, s *script) *integration.PlatformConnection {
	conn := newConnection(userID, platform)
	h.factory.scripts[conn.ID] = s
	return conn
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestOrchestratorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrchestratorConfig)
		wantErr bool
	}{
		{"default", func(*OrchestratorConfig) {}, false},
		{"no workers", func(c *OrchestratorConfig) { c.MaxConcurrentJobs = 0 }, true},
		{"no timeout", func(c *OrchestratorConfig) { c.ConnectionTimeout = 0 }, true},
		{"negative retries", func(c *OrchestratorConfig) { c.RetryAttempts = -1 }, true},
		{"zero retries", func(c *OrchestratorConfig) { c.RetryAttempts = 0 }, false},
		{"max below base", func(c *OrchestratorConfig) { c.RetryMaxDelay = c.RetryBaseDelay / 2 }, true},
		{"page too large", func(c *OrchestratorConfig) { c.PageSize = integration.MaxPageSize + 1 }, true},
		{"negative lookback", func(c *OrchestratorConfig) { c.Lookback = -time.Hour }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultOrchestratorConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrchestratorConfig_Backoff(t *testing.T) {
	cfg := OrchestratorConfig{RetryBaseDelay: time.Second, RetryMaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, cfg.backoff(1))
	assert.Equal(t, 2*time.Second, cfg.backoff(2))
	assert.Equal(t, 4*time.Second, cfg.backoff(3))
	assert.Equal(t, 5*time.Second, cfg.backoff(4))
	assert.Equal(t, 5*time.Second, cfg.backoff(40))
}

func TestNewOrchestrator_Invalid(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorConfig{}, newFakeFactory(), nil, newMemoryOrderRepo(), &memoryCategoryRepo{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrchestrator(DefaultOrchestratorConfig(), nil, nil, newMemoryOrderRepo(), &memoryCategoryRepo{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

// ---------------------------------------------------------------------------
// SyncOrders
// ---------------------------------------------------------------------------

func TestOrchestrator_SyncOrders_MixedOutcome(t *testing.T) {
	h := newHarness(t, testConfig())
	userID := uuid.New()

	a := h.connect(userID, integration.PlatformTaobao, &script{pages: taobaoPages(50, 20, 7, 33)})
	b := h.connect(userID, integration.PlatformDouyin, &script{
		initErr: integration.NewAuthError(integration.PlatformDouyin, "token expired", nil),
	})

	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{a, b})
	require.Len(t, results, 2)

	ra, rb := results[0], results[1]
	assert.Equal(t, a.ID, ra.ConnectionID)
	assert.Equal(t, integration.SyncStateCompleted, ra.State)
	assert.Equal(t, 50, ra.SyncedCount)
	assert.Zero(t, ra.ErrorCount())
	assert.Equal(t, 2, ra.UnmappedStatusCount)
	assert.False(t, ra.FinishedAt.Before(ra.StartedAt))

	assert.Equal(t, b.ID, rb.ConnectionID)
	assert.Equal(t, integration.SyncStateFailed, rb.State)
	assert.ErrorIs(t, rb.ConnectionError, integration.ErrAuth)
	assert.Zero(t, rb.SyncedCount)

	count, err := h.orders.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), count)
	assert.Equal(t, 2, h.orders.countStatus(integration.OrderStatusUnknown))

	stored, err := h.orders.FindByKey(context.Background(), integration.OrderKey{
		UserID: userID, PlatformType: integration.PlatformTaobao, PlatformOrderNumber: "1007",
	})
	require.NoError(t, err)
	assert.Equal(t, "XYZ", stored.RawStatus)
	assert.Equal(t, a.ID, stored.ConnectionID)
}

func TestOrchestrator_SyncOrders_SecondRunIsUnchanged(t *testing.T) {
	h := newHarness(t, testConfig())
	userID := uuid.New()
	conn := h.connect(userID, integration.PlatformTaobao, &script{pages: taobaoPages(25, 10)})

	first := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
	second := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})

	assert.Equal(t, 25, first[0].SyncedCount)
	assert.Zero(t, first[0].UnchangedCount)
	assert.Equal(t, 25, second[0].SyncedCount)
	assert.Equal(t, 25, second[0].UnchangedCount)

	count, _ := h.orders.CountByUser(context.Background(), userID)
	assert.Equal(t, int64(25), count)
}

func TestOrchestrator_SyncOrders_FailureIsolation(t *testing.T) {
	h := newHarness(t, testConfig())
	userID := uuid.New()

	var conns []*integration.PlatformConnection
	for i := 0; i < 5; i++ {
		conns = append(conns, h.connect(userID, integration.PlatformTaobao, &script{pages: taobaoPages(3, 3)}))
	}
	panicking := h.connect(userID, integration.PlatformKuaishou, &script{panics: true})
	fatal := h.connect(userID, integration.PlatformDouyin, &script{
		fetchErrs: []error{integration.NewFatalAPIError(integration.PlatformDouyin, 400, "isv.invalid-parameter", "bad request")},
	})
	conns = append(conns, panicking, fatal)

	results := h.orch.SyncOrders(context.Background(), conns)
	require.Len(t, results, 7)

	for _, r := range results[:5] {
		assert.Equal(t, integration.SyncStateCompleted, r.State)
		assert.Equal(t, 3, r.SyncedCount)
	}
	assert.True(t, results[5].Failed())
	assert.ErrorIs(t, results[5].ConnectionError, ErrJobPanicked)
	assert.True(t, results[6].Failed())
	assert.ErrorIs(t, results[6].ConnectionError, integration.ErrFatalAPI)
	assert.Equal(t, 1, h.factory.scripts[fatal.ID].callCount(), "fatal errors are not retried")
}

func TestOrchestrator_SyncOrders_FatalLaterPageFailsConnection(t *testing.T) {
	h := newHarness(t, testConfig())
	userID := uuid.New()
	s := &script{pages: taobaoPages(10, 5), fatalAt: "1"}
	conn := h.connect(userID, integration.PlatformTaobao, s)

	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
	r := results[0]

	assert.True(t, r.Failed())
	assert.ErrorIs(t, r.ConnectionError, integration.ErrFatalAPI)
	assert.Equal(t, 5, r.SyncedCount)
	assert.Equal(t, 2, s.callCount())

	// the first page stays stored
	count, err := h.orders.CountByUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestOrchestrator_SyncOrders_RetriesTransientErrors(t *testing.T) {
	t.Run("recovers within budget", func(t *testing.T) {
		h := newHarness(t, testConfig())
		s := &script{
			pages: taobaoPages(5, 5),
			fetchErrs: []error{
				integration.NewTransientNetworkError(integration.PlatformTaobao, 503, nil),
				integration.NewRateLimitError(integration.PlatformTaobao, nil),
			},
		}
		conn := h.connect(uuid.New(), integration.PlatformTaobao, s)

		results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
		assert.Equal(t, integration.SyncStateCompleted, results[0].State)
		assert.Equal(t, 5, results[0].SyncedCount)
		assert.Equal(t, 3, s.callCount())
	})

	t.Run("budget exhausted fails the connection", func(t *testing.T) {
		h := newHarness(t, testConfig())
		transient := integration.NewTransientNetworkError(integration.PlatformTaobao, 502, nil)
		s := &script{pages: taobaoPages(5, 5), fetchErrs: []error{transient, transient, transient, transient, transient}}
		conn := h.connect(uuid.New(), integration.PlatformTaobao, s)

		results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
		assert.True(t, results[0].Failed())
		assert.ErrorIs(t, results[0].ConnectionError, integration.ErrTransientNetwork)
		assert.Equal(t, 4, s.callCount())
	})
}

func TestOrchestrator_SyncOrders_ItemErrorsDoNotStopConnection(t *testing.T) {
	h := newHarness(t, testConfig())
	pages := taobaoPages(4, 4)
	pages[0] = append(pages[0], integration.RawRecord{"status": "TRADE_FINISHED"}) // no order number
	h.orders.rejected["1002"] = true
	conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: pages})

	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
	r := results[0]

	assert.Equal(t, integration.SyncStateCompleted, r.State)
	assert.Equal(t, 3, r.SyncedCount)
	require.Equal(t, 2, r.ErrorCount())

	kinds := map[string]string{}
	for _, e := range r.Errors {
		kinds[e.ItemID] = e.Kind
	}
	assert.Equal(t, "persistence", kinds["1002"])
	assert.Contains(t, kinds, "")
}

func TestOrchestrator_SyncOrders_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.ConnectionTimeout = 50 * time.Millisecond
	cfg.RetryAttempts = 0
	h := newHarness(t, cfg)

	slow := h.connect(uuid.New(), integration.PlatformTaobao, &script{blocks: true})
	fast := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(2, 2)})

	start := time.Now()
	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{slow, fast})

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.ErrorIs(t, results[0].ConnectionError, integration.ErrTimeout)
	var te *integration.TimeoutError
	require.ErrorAs(t, results[0].ConnectionError, &te)
	assert.Equal(t, slow.ID.String(), te.ConnectionID)
	assert.Equal(t, integration.SyncStateCompleted, results[1].State)
}

func TestOrchestrator_SyncOrders_Cancelled(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(2, 2)})
	results := h.orch.SyncOrders(ctx, []*integration.PlatformConnection{conn})

	assert.True(t, results[0].Failed())
	assert.ErrorIs(t, results[0].ConnectionError, context.Canceled)
	assert.NotErrorIs(t, results[0].ConnectionError, integration.ErrTimeout)
}

func TestOrchestrator_SyncOrders_SkipsInactive(t *testing.T) {
	h := newHarness(t, testConfig())
	active := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(1, 1)})
	inactive := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(1, 1)})
	inactive.IsActive = false

	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{inactive, nil, active})
	require.Len(t, results, 1)
	assert.Equal(t, active.ID, results[0].ConnectionID)

	assert.Empty(t, h.orch.SyncOrders(context.Background(), nil))
}

func TestOrchestrator_SyncOrders_BoundedConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrentJobs = 2
	h := newHarness(t, cfg)

	var conns []*integration.PlatformConnection
	for i := 0; i < 6; i++ {
		conns = append(conns, h.connect(uuid.New(), integration.PlatformTaobao, &script{
			pages: taobaoPages(1, 1),
			delay: 20 * time.Millisecond,
		}))
	}

	results := h.orch.SyncOrders(context.Background(), conns)
	for _, r := range results {
		assert.Equal(t, integration.SyncStateCompleted, r.State)
	}
	assert.LessOrEqual(t, h.factory.maxInFlight.Load(), int32(2))
	assert.Positive(t, h.factory.maxInFlight.Load())
}

func TestOrchestrator_SyncOrders_RepeatedTokenEndsListing(t *testing.T) {
	h := newHarness(t, testConfig())
	s := &script{pages: taobaoPages(3, 3), stuckToken: true}
	conn := h.connect(uuid.New(), integration.PlatformTaobao, s)

	results := h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
	assert.Equal(t, integration.SyncStateCompleted, results[0].State)
	assert.Equal(t, 2, s.callCount())
}

func TestOrchestrator_SyncOrders_LogsUnmappedStatus(t *testing.T) {
	h := newHarness(t, testConfig())
	core, logs := observer.New(zapcore.WarnLevel)
	orch, err := NewOrchestrator(testConfig(), h.factory, nil, h.orders, h.categories, zap.New(core))
	require.NoError(t, err)

	conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(5, 5, 3)})
	results := orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].SyncedCount)

	entries := logs.FilterMessage("Unmapped platform order status").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "XYZ", fields["raw_status"])
	assert.Equal(t, "1003", fields["order_number"])

	table, ok := integration.NewNormalizer(nil).Table(integration.PlatformTaobao)
	require.True(t, ok)
	assert.Equal(t, table.Version, fields["mapping_version"])
}

func TestOrchestrator_SyncOrders_RecordsResults(t *testing.T) {
	h := newHarness(t, testConfig())
	conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{pages: taobaoPages(1, 1)})

	h.orch.SyncOrders(context.Background(), []*integration.PlatformConnection{conn})

	require.Len(t, h.recorder.results[telemetry.ResourceOrders], 1)
	assert.Equal(t, conn.ID, h.recorder.results[telemetry.ResourceOrders][0].ConnectionID)
}

// ---------------------------------------------------------------------------
// SyncCategories
// ---------------------------------------------------------------------------

func TestOrchestrator_SyncCategories(t *testing.T) {
	t.Run("normalizes and stores the tree", func(t *testing.T) {
		h := newHarness(t, testConfig())
		userID := uuid.New()
		conn := h.connect(userID, integration.PlatformTaobao, &script{categories: []integration.RawRecord{
			{"cid": "111", "parent_cid": "11", "name": "蓝牙耳机", "is_parent": false},
			{"cid": "11", "parent_cid": "1", "name": "耳机", "is_parent": true},
			{"cid": "1", "parent_cid": "0", "name": "数码", "is_parent": true},
			{"parent_cid": "1", "name": "no id"},
		}})

		r := h.orch.SyncCategories(context.Background(), conn)

		assert.Equal(t, integration.SyncStateCompleted, r.State)
		assert.Equal(t, 3, r.SyncedCount)
		assert.Equal(t, 1, r.ErrorCount())
		require.Len(t, h.categories.batches, 1)
		batch := h.categories.batches[0]
		require.Len(t, batch, 3)
		assert.Equal(t, "11", batch[0].ParentID())
		assert.True(t, batch[0].IsLeaf)
		assert.True(t, batch[2].IsRoot())
		assert.Equal(t, userID, batch[2].UserID)
		assert.Len(t, h.recorder.results[telemetry.ResourceCategories], 1)
	})

	t.Run("orphans are errors and not synced", func(t *testing.T) {
		h := newHarness(t, testConfig())
		conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{categories: []integration.RawRecord{
			{"cid": "1", "parent_cid": "0", "name": "数码", "is_parent": true},
			{"cid": "7", "parent_cid": "404", "name": "orphan", "is_parent": false},
		}})

		r := h.orch.SyncCategories(context.Background(), conn)

		assert.Equal(t, integration.SyncStateCompleted, r.State)
		assert.Equal(t, 1, r.SyncedCount)
		require.Equal(t, 1, r.ErrorCount())
		assert.Equal(t, "7", r.Errors[0].ItemID)
		require.Len(t, h.categories.batches, 1)
		assert.False(t, h.categories.batches[0][1].IsRoot())
	})

	t.Run("auth failure", func(t *testing.T) {
		h := newHarness(t, testConfig())
		conn := newConnection(uuid.New(), integration.PlatformDouyin) // no script: no credentials

		r := h.orch.SyncCategories(context.Background(), conn)
		assert.True(t, r.Failed())
		assert.ErrorIs(t, r.ConnectionError, integration.ErrAuth)
	})

	t.Run("repository failure fails the connection", func(t *testing.T) {
		h := newHarness(t, testConfig())
		h.categories.err = errors.New("database is gone")
		conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{categories: []integration.RawRecord{{"cid": "1", "name": "root"}}})

		r := h.orch.SyncCategories(context.Background(), conn)
		assert.True(t, r.Failed())
		assert.EqualError(t, r.ConnectionError, "database is gone")
	})

	t.Run("inactive and nil connections", func(t *testing.T) {
		h := newHarness(t, testConfig())
		conn := h.connect(uuid.New(), integration.PlatformTaobao, &script{})
		conn.IsActive = false

		assert.ErrorIs(t, h.orch.SyncCategories(context.Background(), conn).ConnectionError, integration.ErrConnectionInactive)
		assert.ErrorIs(t, h.orch.SyncCategories(context.Background(), nil).ConnectionError, integration.ErrConnectionNotFound)
	})
}

func TestItemIDOf(t *testing.T) {
	assert.Equal(t, "7", itemIDOf(integration.NewMappingError(integration.PlatformTaobao, "7", "status", "x")))
	assert.Equal(t, "TAOBAO:8", itemIDOf(integration.NewPersistenceError("TAOBAO:8", "x", nil)))
	assert.Equal(t, "", itemIDOf(errors.New("plain")))
}
