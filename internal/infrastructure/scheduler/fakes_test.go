package scheduler

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/marketsync/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Scripted adapters
// ---------------------------------------------------------------------------

// script drives the fake adapter of one connection
type script struct {
	initErr    error
	pages      [][]integration.RawRecord
	fetchErrs  []error // returned by the first fetches, in order
	categories []integration.RawRecord
	panics     bool
	blocks     bool
	stuckToken bool
	delay      time.Duration
	// fatalAt fails the fetch of the page with this token
	fatalAt string

	mu    sync.Mutex
	calls int
}

func (s *script) nextErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.fetchErrs) == 0 {
		return nil
	}
	err := s.fetchErrs[0]
	s.fetchErrs = s.fetchErrs[1:]
	return err
}

func (s *script) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeFactory struct {
	scripts map[uuid.UUID]*script

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{scripts: map[uuid.UUID]*script{}}
}

func (f *fakeFactory) NewAdapter(platform integration.PlatformType) (integration.PlatformAdapter, error) {
	if !platform.IsValid() {
		return nil, integration.ErrAdapterNotRegistered
	}
	return &fakeAdapter{factory: f, platform: platform}, nil
}

func (f *fakeFactory) SupportedPlatforms() []integration.PlatformType {
	return integration.AllPlatformTypes()
}

type fakeAdapter struct {
	factory  *fakeFactory
	platform integration.PlatformType
	s        *script
}

func (a *fakeAdapter) PlatformType() integration.PlatformType { return a.platform }

func (a *fakeAdapter) Initialize(_ context.Context, conn *integration.PlatformConnection) error {
	s, ok := a.factory.scripts[conn.ID]
	if !ok {
		return integration.NewAuthError(a.platform, "no credentials", nil)
	}
	if s.initErr != nil {
		return s.initErr
	}
	a.s = s
	return nil
}

func (a *fakeAdapter) enter() func() {
	n := a.factory.inFlight.Add(1)
	for {
		cur := a.factory.maxInFlight.Load()
		if n <= cur || a.factory.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	return func() { a.factory.inFlight.Add(-1) }
}

func (a *fakeAdapter) FetchOrders(ctx context.Context, params integration.PageParams) (*integration.OrderPage, error) {
	defer a.enter()()

	if err := a.s.nextErr(); err != nil {
		return nil, err
	}
	if a.s.panics {
		panic("adapter exploded")
	}
	if a.s.blocks {
		<-ctx.Done()
		return nil, integration.NewTransientNetworkError(a.platform, 0, ctx.Err())
	}
	if a.s.delay > 0 {
		time.Sleep(a.s.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, integration.NewTransientNetworkError(a.platform, 0, err)
	}

	if a.s.stuckToken {
		return &integration.OrderPage{Records: a.s.pages[0], NextToken: "same"}, nil
	}
	if a.s.fatalAt != "" && params.Token == a.s.fatalAt {
		return nil, integration.NewFatalAPIError(a.platform, 400, "isv.invalid-page", "page token rejected")
	}

	idx := 0
	if params.Token != "" {
		idx, _ = strconv.Atoi(params.Token)
	}
	if idx >= len(a.s.pages) {
		return &integration.OrderPage{}, nil
	}
	page := &integration.OrderPage{Records: a.s.pages[idx]}
	if idx+1 < len(a.s.pages) {
		page.NextToken = strconv.Itoa(idx + 1)
	}
	return page, nil
}

func (a *fakeAdapter) FetchCategories(ctx context.Context) ([]integration.RawRecord, error) {
	if err := a.s.nextErr(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.s.categories, nil
}

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryOrderRepo struct {
	mu       sync.Mutex
	orders   map[integration.OrderKey]*integration.CanonicalOrder
	hashes   map[integration.OrderKey]string
	rejected map[string]bool
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:   map[integration.OrderKey]*integration.CanonicalOrder{},
		hashes:   map[integration.OrderKey]string{},
		rejected: map[string]bool{},
	}
}

func (r *memoryOrderRepo) Upsert(ctx context.Context, order *integration.CanonicalOrder) (integration.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := order.Validate(); err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rejected[order.PlatformOrderNumber] {
		return "", integration.NewPersistenceError(order.Key().String(), "constraint violated", nil)
	}

	key := order.Key()
	hash := order.ContentHash()
	prev, ok := r.hashes[key]
	r.orders[key] = order
	r.hashes[key] = hash
	switch {
	case !ok:
		return integration.UpsertInserted, nil
	case prev == hash:
		return integration.UpsertUnchanged, nil
	default:
		return integration.UpsertUpdated, nil
	}
}

func (r *memoryOrderRepo) FindByKey(_ context.Context, key integration.OrderKey) (*integration.CanonicalOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[key]
	if !ok {
		return nil, integration.ErrOrderNotFound
	}
	return o, nil
}

func (r *memoryOrderRepo) CountByUser(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k := range r.orders {
		if k.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memoryOrderRepo) ListByUser(_ context.Context, userID uuid.UUID, platform integration.PlatformType, _ int) ([]*integration.CanonicalOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*integration.CanonicalOrder
	for k, o := range r.orders {
		if k.UserID == userID && (platform == "" || k.PlatformType == platform) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) countStatus(status integration.OrderStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.orders {
		if o.Status == status {
			n++
		}
	}
	return n
}

type memoryCategoryRepo struct {
	mu      sync.Mutex
	batches [][]*integration.CanonicalCategory
	err     error
}

func (r *memoryCategoryRepo) UpsertBatch(_ context.Context, _ uuid.UUID, _ integration.PlatformType, categories []*integration.CanonicalCategory) (*integration.CategoryBatchResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, categories)

	ids := make(map[string]bool, len(categories))
	for _, c := range categories {
		ids[c.PlatformCategoryID] = true
	}
	result := &integration.CategoryBatchResult{}
	for _, c := range categories {
		result.Inserted++
		if p := c.DeclaredParent(); p != nil && !ids[*p] {
			err := integration.NewPersistenceError(c.PlatformCategoryID, "parent category "+*p+" not found", nil)
			result.Errors = append(result.Errors, integration.NewItemError(c.PlatformCategoryID, err))
			result.Unresolve(integration.UpsertInserted)
		}
	}
	return result, nil
}

func (r *memoryCategoryRepo) ListByUser(context.Context, uuid.UUID, integration.PlatformType) ([]*integration.CanonicalCategory, error) {
	return nil, nil
}

func (r *memoryCategoryRepo) CountByUser(context.Context, uuid.UUID, integration.PlatformType) (int64, error) {
	return 0, nil
}

// ---------------------------------------------------------------------------
// Recorder
// ---------------------------------------------------------------------------

type recordingRecorder struct {
	mu      sync.Mutex
	results map[string][]*integration.SyncResult
}

func (r *recordingRecorder) RecordSyncResult(_ context.Context, resource string, result *integration.SyncResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string][]*integration.SyncResult{}
	}
	r.results[resource] = append(r.results[resource], result)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func newConnection(userID uuid.UUID, platform integration.PlatformType) *integration.PlatformConnection {
	return &integration.PlatformConnection{
		ID:           uuid.New(),
		UserID:       userID,
		PlatformType: platform,
		IsActive:     true,
	}
}

func taobaoOrder(number, status string) integration.RawRecord {
	return integration.RawRecord{
		"tid":      number,
		"status":   status,
		"payment":  "10.00",
		"created":  "2024-03-01 10:00:00",
		"modified": "2024-03-01 12:00:00",
	}
}

// taobaoPages splits n orders into pages of size, giving the orders listed in
// unmapped the status "XYZ"
func taobaoPages(n, size int, unmapped ...int) [][]integration.RawRecord {
	odd := map[int]bool{}
	for _, i := range unmapped {
		odd[i] = true
	}
	var pages [][]integration.RawRecord
	for start := 0; start < n; start += size {
		var page []integration.RawRecord
		for i := start; i < n && i < start+size; i++ {
			status := "TRADE_FINISHED"
			if odd[i] {
				status = "XYZ"
			}
			page = append(page, taobaoOrder(strconv.Itoa(1000+i), status))
		}
		pages = append(pages, page)
	}
	return pages
}
