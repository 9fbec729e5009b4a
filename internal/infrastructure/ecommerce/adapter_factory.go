package ecommerce

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/marketsync/backend/internal/domain/integration"
)

// AdapterFactory builds a fresh adapter per connection. Adapters of the
// same platform share one HTTP client and one token bucket, so the
// platform's rate limit holds across concurrent connections.
type AdapterFactory struct {
	settings map[integration.PlatformType]PlatformSettings
	clients  map[integration.PlatformType]*http.Client
	limiters map[integration.PlatformType]*rate.Limiter
	logger   *zap.Logger
}

// NewAdapterFactory creates a factory for every platform present in
// settings. Platforms missing from settings are built with defaults.
func NewAdapterFactory(settings map[integration.PlatformType]PlatformSettings, logger *zap.Logger) *AdapterFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &AdapterFactory{
		settings: make(map[integration.PlatformType]PlatformSettings),
		clients:  make(map[integration.PlatformType]*http.Client),
		limiters: make(map[integration.PlatformType]*rate.Limiter),
		logger:   logger,
	}
	for _, p := range integration.AllPlatformTypes() {
		s := settings[p]
		switch p {
		case integration.PlatformTaobao:
			s = s.withDefaults(TaobaoProductionAPIURL, TaobaoSandboxAPIURL)
		case integration.PlatformDouyin:
			s = s.withDefaults(DouyinProductionAPIURL, DouyinSandboxAPIURL)
		case integration.PlatformKuaishou:
			s = s.withDefaults(KuaishouProductionAPIURL, KuaishouSandboxAPIURL)
		}
		f.settings[p] = s
		f.clients[p] = &http.Client{Timeout: time.Duration(s.TimeoutSeconds) * time.Second}
		f.limiters[p] = rate.NewLimiter(rate.Limit(s.RateLimitQPS), s.RateLimitBurst)
	}
	return f
}

// NewAdapter returns an uninitialized adapter for the platform
func (f *AdapterFactory) NewAdapter(platform integration.PlatformType) (integration.PlatformAdapter, error) {
	s, ok := f.settings[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrAdapterNotRegistered, platform)
	}
	client := newPlatformClient(platform, s, f.clients[platform], f.limiters[platform],
		f.logger.With(zap.String("platform", platform.String())))

	switch platform {
	case integration.PlatformTaobao:
		return newTaobaoAdapter(client), nil
	case integration.PlatformDouyin:
		return newDouyinAdapter(client, s.CategoryMaxDepth), nil
	case integration.PlatformKuaishou:
		return newKuaishouAdapter(client), nil
	default:
		return nil, fmt.Errorf("%w: %s", integration.ErrAdapterNotRegistered, platform)
	}
}

// SupportedPlatforms returns the platforms this factory can build
func (f *AdapterFactory) SupportedPlatforms() []integration.PlatformType {
	out := make([]integration.PlatformType, 0, len(f.settings))
	for p := range f.settings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Settings returns the effective settings of a platform
func (f *AdapterFactory) Settings(platform integration.PlatformType) (PlatformSettings, bool) {
	s, ok := f.settings[platform]
	return s, ok
}

// Ensure AdapterFactory implements integration.AdapterFactory
var _ integration.AdapterFactory = (*AdapterFactory)(nil)
