// Package settings reads the tenant's sponsored-search settings.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/EcommerceGo/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

// DefaultURLTemplate is expanded with the tenant's workspace and account.
const DefaultURLTemplate = "http://{workspace}--{account}.myvtex.com/_v/ts/settings"

const maxSettingsBody = 64 << 10

// Fetcher retrieves tenant settings. A failed lookup yields no settings,
// which turns sponsored augmentation off for that request.
type Fetcher struct {
	doer        httpclient.HTTPDoer
	urlTemplate string
	logger      *slog.Logger
}

// NewFetcher creates a settings fetcher. An empty template uses
// DefaultURLTemplate.
func NewFetcher(doer httpclient.HTTPDoer, urlTemplate string, logger *slog.Logger) *Fetcher {
	if urlTemplate == "" {
		urlTemplate = DefaultURLTemplate
	}
	return &Fetcher{doer: doer, urlTemplate: urlTemplate, logger: logger}
}

// URL returns the settings endpoint for a tenant.
func (f *Fetcher) URL(tenant domain.Tenant) string {
	return strings.NewReplacer(
		"{workspace}", tenant.Workspace,
		"{account}", tenant.Account,
	).Replace(f.urlTemplate)
}

// Fetch returns the tenant's settings, or nil when they cannot be read.
func (f *Fetcher) Fetch(ctx context.Context, tenant domain.Tenant) *domain.Settings {
	s, err := f.fetch(ctx, tenant)
	if err != nil {
		f.logger.WarnContext(ctx, "settings unavailable, sponsored products disabled",
			slog.String("account", tenant.Account),
			slog.String("workspace", tenant.Workspace),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return s
}

func (f *Fetcher) fetch(ctx context.Context, tenant domain.Tenant) (*domain.Settings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL(tenant), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create settings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("settings request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpclient.ParseResponseError(resp, "settings")
	}
	defer func() { _ = resp.Body.Close() }()

	var s domain.Settings
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSettingsBody)).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.AdvancedAPIKey = strings.TrimSpace(s.AdvancedAPIKey)
	return &s, nil
}
