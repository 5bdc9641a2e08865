package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/utafrali/EcommerceGo/pkg/config"
	"github.com/utafrali/EcommerceGo/pkg/tracing"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// Search backends selectable through SEARCH_BACKEND.
const (
	BackendIntelligentSearch = "intelligentsearch"
	BackendElasticsearch     = "elasticsearch"
	BackendMemory            = "memory"
)

var backends = []string{BackendIntelligentSearch, BackendElasticsearch, BackendMemory}

// maxSponsoredSlots bounds SPONSORED_DEFAULT_SLOTS.
const maxSponsoredSlots = 20

// Config holds all configuration for the search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort       int           `env:"SEARCH_HTTP_PORT" envDefault:"8010"`
	RequestTimeout time.Duration `env:"SEARCH_REQUEST_TIMEOUT" envDefault:"30s"`

	// Search backend selection (intelligentsearch, elasticsearch or memory)
	SearchBackend        string        `env:"SEARCH_BACKEND" envDefault:"intelligentsearch"`
	IntelligentSearchURL string        `env:"INTELLIGENT_SEARCH_URL" envDefault:"http://{workspace}--{account}.myvtex.com/_v/api/intelligent-search"`
	SlowBackendThreshold time.Duration `env:"SEARCH_SLOW_BACKEND_THRESHOLD" envDefault:"500ms"`
	// CatalogSeedPath is a JSON catalog loaded into indexable backends at startup.
	CatalogSeedPath string `env:"CATALOG_SEED_PATH"`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"search_catalog"`

	// Default tenant for requests without tenant headers
	TenantAccount   string `env:"TENANT_ACCOUNT" envDefault:"storecomponents"`
	TenantWorkspace string `env:"TENANT_WORKSPACE" envDefault:"master"`
	TenantLocale    string `env:"TENANT_LOCALE" envDefault:"en-US"`

	// Sponsored products
	SettingsURLTemplate   string `env:"SETTINGS_URL_TEMPLATE" envDefault:"http://{workspace}--{account}.myvtex.com/_v/ts/settings"`
	AuctionURL            string `env:"AUCTION_URL" envDefault:"https://api.topsort.com/v2/auctions"`
	AuctionUserAgent      string `env:"AUCTION_USER_AGENT" envDefault:"@topsort/vtex-search-resolver"`
	SponsoredDefaultSlots int    `env:"SPONSORED_DEFAULT_SLOTS" envDefault:"2"`
	SponsoredCategoryPath bool   `env:"SPONSORED_CATEGORY_FULL_PATH" envDefault:"false"`
	SponsoredTagVisible   bool   `env:"SPONSORED_TAG_VISIBLE" envDefault:"true"`
	SponsoredTagLabel     string `env:"SPONSORED_TAG_LABEL" envDefault:"Sponsored"`
	SponsoredMaxFetches   int    `env:"SPONSORED_MAX_CONCURRENT_FETCHES" envDefault:"4"`

	// Outbound HTTP
	HTTPClient HTTPClientConfig `envPrefix:"HTTP_CLIENT_"`

	// Circuit breakers, shared by the auction, settings and backend clients
	CircuitBreaker CircuitBreakerConfig `envPrefix:"CB_"`

	Tracing tracing.Config `envPrefix:"OTEL_"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	CacheMaxAge        time.Duration `env:"SEARCH_CACHE_MAX_AGE" envDefault:"60s"`

	PprofEnabled      bool     `env:"PPROF_ENABLED" envDefault:"false"`
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`
}

// HTTPClientConfig tunes the retrying client used for every outbound call.
type HTTPClientConfig struct {
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
	MaxRetries   int           `env:"MAX_RETRIES" envDefault:"1"`
	RetryWaitMin time.Duration `env:"RETRY_WAIT_MIN" envDefault:"100ms"`
	RetryWaitMax time.Duration `env:"RETRY_WAIT_MAX" envDefault:"1s"`
}

// CircuitBreakerConfig mirrors httpclient.CircuitBreakerConfig without the name.
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `env:"MAX_REQUESTS" envDefault:"1"`
	Interval     time.Duration `env:"INTERVAL" envDefault:"60s"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"30s"`
	FailureRatio float64       `env:"FAILURE_RATIO" envDefault:"0.5"`
	MinRequests  uint32        `env:"MIN_REQUESTS" envDefault:"5"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	cfg.Tracing.ServiceName = "search"
	cfg.Tracing.Environment = cfg.Environment
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
// DefaultTenant is the tenant served when a request names none.
func (c *Config) DefaultTenant() domain.Tenant {
	return domain.Tenant{
		Account:   c.TenantAccount,
		Workspace: c.TenantWorkspace,
		Locale:    c.TenantLocale,
	}
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains(backends, c.SearchBackend) {
		return fmt.Errorf("invalid SEARCH_BACKEND %q: must be one of %v", c.SearchBackend, backends)
	}
	if err := validator.Validate(c.DefaultTenant()); err != nil {
		return fmt.Errorf("invalid default tenant: %w", err)
	}
	if c.AuctionURL == "" {
		return fmt.Errorf("AUCTION_URL is required")
	}
	if c.SponsoredDefaultSlots < 1 || c.SponsoredDefaultSlots > maxSponsoredSlots {
		return fmt.Errorf("invalid SPONSORED_DEFAULT_SLOTS: %d (must be 1..%d)", c.SponsoredDefaultSlots, maxSponsoredSlots)
	}
	if c.SponsoredMaxFetches < 1 {
		return fmt.Errorf("invalid SPONSORED_MAX_CONCURRENT_FETCHES: %d", c.SponsoredMaxFetches)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE: %v (must be 0..1)", c.Tracing.SampleRate)
	}
	if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
		return fmt.Errorf("invalid CB_FAILURE_RATIO: %v", c.CircuitBreaker.FailureRatio)
	}
	return nil
}
