package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/EcommerceGo/services/search/internal/domain"
)

const tracerName = "github.com/utafrali/EcommerceGo/services/search/internal/backend"

var requestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "search_backend_request_duration_seconds",
		Help:    "Duration of search backend calls",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	},
	[]string{"backend", "operation", "status"},
)

// Instrumented wraps a Backend with a client span, a duration histogram and
// slow-call logging for every call.
type Instrumented struct {
	next          Backend
	name          string
	slowThreshold time.Duration
	logger        *slog.Logger
}

// Instrument wraps next. A zero slowThreshold disables slow-call logging.
func Instrument(next Backend, name string, slowThreshold time.Duration, logger *slog.Logger) *Instrumented {
	return &Instrumented{next: next, name: name, slowThreshold: slowThreshold, logger: logger}
}

func (b *Instrumented) ProductSearch(ctx context.Context, args domain.SearchArgs) (res *domain.SearchResult, err error) {
	ctx, end := b.trace(ctx, "ProductSearch", args.Path)
	defer func() { end(err) }()
	return b.next.ProductSearch(ctx, args)
}

func (b *Instrumented) Facets(ctx context.Context, args domain.SearchArgs) (res *domain.FacetsResult, err error) {
	ctx, end := b.trace(ctx, "Facets", args.Path)
	defer func() { end(err) }()
	return b.next.Facets(ctx, args)
}

func (b *Instrumented) ProductByID(ctx context.Context, id string, args domain.SearchArgs) (p *domain.Product, err error) {
	ctx, end := b.trace(ctx, "ProductByID", id)
	defer func() { end(err) }()
	return b.next.ProductByID(ctx, id, args)
}

// trace starts a span for a backend call. The returned function must be
// called with the call's error when it completes.
func (b *Instrumented) trace(ctx context.Context, operation, target string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("search.backend", b.name),
			attribute.String("search.operation", operation),
			attribute.String("search.target", target),
		),
	)

	return ctx, func(err error) {
		status := "ok"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		elapsed := time.Since(start)
		requestDuration.WithLabelValues(b.name, operation, status).Observe(elapsed.Seconds())

		if b.slowThreshold > 0 && b.logger != nil && elapsed >= b.slowThreshold {
			attrs := []any{
				slog.String("backend", b.name),
				slog.String("operation", operation),
				slog.String("target", target),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			b.logger.WarnContext(ctx, "slow backend call", attrs...)
		}
	}
}
