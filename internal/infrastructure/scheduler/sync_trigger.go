package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserProvider lists the users that own at least one active connection
type UserProvider interface {
	ListUsersWithActiveConnections(ctx context.Context) ([]uuid.UUID, error)
}

// UserSyncFunc runs a full order sync for one user
type UserSyncFunc func(ctx context.Context, userID uuid.UUID) error

// SyncTriggerConfig holds configuration for the periodic sync trigger
type SyncTriggerConfig struct {
	// Interval is the time between two periodic runs
	Interval time.Duration
	// RunOnStart triggers a run as soon as the trigger starts
	RunOnStart bool
}

// DefaultSyncTriggerConfig returns default configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval: 15 * time.Minute,
	}
}

// Validate validates the configuration
func (c *SyncTriggerConfig) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncTrigger periodically syncs the orders of every user with an active
// connection. Runs never overlap; a tick arriving while a run is still in
// progress is skipped.
type SyncTrigger struct {
	config SyncTriggerConfig
	users  UserProvider
	syncFn UserSyncFunc
	logger *zap.Logger

	// cancel and done belong to the running loop, guarded by mu
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time

	runMu sync.Mutex
}

// NewSyncTrigger creates a new periodic sync trigger
func NewSyncTrigger(config SyncTriggerConfig, users UserProvider, syncFn UserSyncFunc, logger *zap.Logger) (*SyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if users == nil || syncFn == nil {
		return nil, ErrInvalidConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		config: config,
		users:  users,
		syncFn: syncFn,
		logger: logger,
	}, nil
}

// Start starts the trigger loop
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.isRunning = true
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	go t.runLoop(ctx, done)

	t.logger.Info("Periodic sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)
	return nil
}

// Stop stops the trigger loop and waits for an in-flight run to end or ctx
// to expire
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	cancel, done := t.cancel, t.done
	t.isRunning = false
	t.cancel = nil
	t.done = nil
	t.mu.Unlock()

	cancel()

	select {
	case <-done:
		t.logger.Info("Periodic sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the trigger loop is running
func (t *SyncTrigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// LastRun returns when the last run started, zero before the first one
func (t *SyncTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *SyncTrigger) runLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	if t.config.RunOnStart {
		t.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *SyncTrigger) tick(ctx context.Context) {
	if _, err := t.TriggerNow(ctx); err != nil && err != ErrSyncAlreadyInProgress {
		t.logger.Error("Periodic sync run failed", zap.Error(err))
	}
}

// TriggerNow syncs every user with an active connection, one user at a
// time, and returns how many users were synced without error. A failing
// user is logged and does not stop the run.
func (t *SyncTrigger) TriggerNow(ctx context.Context) (int, error) {
	if !t.runMu.TryLock() {
		t.logger.Debug("Skipping periodic sync, previous run still in progress")
		return 0, ErrSyncAlreadyInProgress
	}
	defer t.runMu.Unlock()

	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	userIDs, err := t.users.ListUsersWithActiveConnections(ctx)
	if err != nil {
		return 0, err
	}

	t.logger.Info("Running periodic order sync", zap.Int("user_count", len(userIDs)))

	synced := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := t.syncFn(ctx, userID); err != nil {
			t.logger.Error("Periodic order sync failed for user",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			continue
		}
		synced++
	}
	return synced, nil
}
