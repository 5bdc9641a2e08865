package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
	"github.com/utafrali/EcommerceGo/pkg/httputil"
	"github.com/utafrali/EcommerceGo/pkg/middleware"
	"github.com/utafrali/EcommerceGo/pkg/validator"
	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
	"github.com/utafrali/EcommerceGo/services/search/internal/service"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	tenant  domain.Tenant
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler. defaultTenant is used
// when a request carries no tenant headers.
func NewSearchHandler(svc *service.SearchService, defaultTenant domain.Tenant, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		tenant:  defaultTenant,
		logger:  logger,
	}
}

// ProductSearch handles GET /api/v1/search/products/*
func (h *SearchHandler) ProductSearch(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseArgs(w, r)
	if !ok {
		return
	}

	result, err := h.service.ProductSearch(r.Context(), args)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Facets handles GET /api/v1/search/facets/*
func (h *SearchHandler) Facets(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseArgs(w, r)
	if !ok {
		return
	}

	result, err := h.service.Facets(r.Context(), args)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Banners handles GET /api/v1/search/banners/*
func (h *SearchHandler) Banners(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseArgs(w, r)
	if !ok {
		return
	}
	h.writeRaw(w, r)(h.service.Banners(r.Context(), args))
}

// SponsoredProducts handles GET /api/v1/search/sponsored/*
func (h *SearchHandler) SponsoredProducts(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseArgs(w, r)
	if !ok {
		return
	}
	h.writeRaw(w, r)(h.service.SponsoredProducts(r.Context(), args))
}

// Suggestions handles GET /api/v1/search/suggestions
func (h *SearchHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseTextArgs(w, r)
	if !ok {
		return
	}
	h.writeRaw(w, r)(h.service.Suggestions(r.Context(), args))
}

// Autocomplete handles GET /api/v1/search/autocomplete
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseTextArgs(w, r)
	if !ok {
		return
	}
	h.writeRaw(w, r)(h.service.Autocomplete(r.Context(), args))
}

// Correction handles GET /api/v1/search/correction
func (h *SearchHandler) Correction(w http.ResponseWriter, r *http.Request) {
	args, ok := h.parseTextArgs(w, r)
	if !ok {
		return
	}
	h.writeRaw(w, r)(h.service.Correction(r.Context(), args))
}

// TopSearches handles GET /api/v1/search/top
func (h *SearchHandler) TopSearches(w http.ResponseWriter, r *http.Request) {
	tenant := h.tenantOf(r)
	if err := validator.Validate(tenant); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeRaw(w, r)(h.service.TopSearches(r.Context(), tenant))
}

func (h *SearchHandler) writeRaw(w http.ResponseWriter, r *http.Request) func(json.RawMessage, error) {
	return func(data json.RawMessage, err error) {
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: data})
	}
}

// parseTextArgs binds the query and locale of the text-only endpoints.
func (h *SearchHandler) parseTextArgs(w http.ResponseWriter, r *http.Request) (domain.SearchArgs, bool) {
	args := domain.SearchArgs{
		Query:  strings.TrimSpace(r.URL.Query().Get("query")),
		Tenant: h.tenantOf(r),
	}
	if err := validator.Validate(args); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return args, false
	}
	return args, true
}

// parseArgs binds the wildcard path, query parameters and headers of a
// search request and validates the result.
func (h *SearchHandler) parseArgs(w http.ResponseWriter, r *http.Request) (domain.SearchArgs, bool) {
	args, err := bindSearchArgs(r)
	if err == nil {
		args.Tenant = h.tenantOf(r)
		err = validator.Validate(args)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return args, false
	}
	return args, true
}

func bindSearchArgs(r *http.Request) (domain.SearchArgs, error) {
	q := r.URL.Query()

	path := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}

	args := domain.SearchArgs{
		Path:     path,
		Query:    strings.TrimSpace(q.Get("query")),
		Sort:     q.Get("sort"),
		Operator: q.Get("operator"),
		Fuzzy:    q.Get("fuzzy"),
		RegionID: q.Get("regionId"),
	}

	var err error
	if args.Page, err = intParam(q, "page"); err != nil {
		return args, err
	}
	if args.Count, err = intParam(q, "count"); err != nil {
		return args, err
	}
	if args.SponsoredCount, err = intParam(q, "sponsoredCount"); err != nil {
		return args, err
	}
	if args.Leap, err = boolParam(q, "leap"); err != nil {
		return args, err
	}
	if args.DeepestCategoryOnly, err = boolParam(q, "deepestCategoryOnly"); err != nil {
		return args, err
	}
	if v := q.Get("hideUnavailableItems"); v != "" {
		hide, err := strconv.ParseBool(v)
		if err != nil {
			return args, apperrors.InvalidInput("hideUnavailableItems must be a boolean")
		}
		args.HideUnavailableItems = &hide
	}

	for _, raw := range q["selectedFacets"] {
		key, value, ok := strings.Cut(raw, ":")
		if !ok {
			return args, apperrors.InvalidInput("selectedFacets must be key:value")
		}
		args.SelectedFacets = append(args.SelectedFacets, domain.Facet{Key: key, Value: value})
	}

	if raw := q.Get("searchState"); raw != "" {
		state, err := url.ParseQuery(raw)
		if err != nil {
			return args, apperrors.InvalidInput("searchState must be a query string")
		}
		args.SearchState = make(map[string]string, len(state))
		for k := range state {
			args.SearchState[k] = state.Get(k)
		}
	}

	if v := r.Header.Get(middleware.ShippingOptionsHeader); v != "" {
		for _, opt := range strings.Split(v, ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				args.ShippingOptions = append(args.ShippingOptions, opt)
			}
		}
	}

	return args, nil
}

// tenantOf reads the tenant headers, falling back to the configured tenant
// field by field. Callers validate the result before it reaches a backend.
func (h *SearchHandler) tenantOf(r *http.Request) domain.Tenant {
	t := h.tenant
	if v := r.Header.Get(middleware.TenantAccountHeader); v != "" {
		t.Account = v
	}
	if v := r.Header.Get(middleware.TenantWorkspaceHeader); v != "" {
		t.Workspace = v
	}
	if v := r.URL.Query().Get("locale"); v != "" {
		t.Locale = v
	}
	return t
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperrors.InvalidInput(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := q.Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, apperrors.InvalidInput(fmt.Sprintf("%s must be a boolean", name))
	}
	return b, nil
}
