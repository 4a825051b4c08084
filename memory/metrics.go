package memory

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters for cache effectiveness and durability health. They are no-ops
// until the host application installs an OpenTelemetry metrics SDK.
var (
	meter = otel.Meter("github.com/prompta-ai/memkit/memory")

	hitCounter, _ = meter.Int64Counter("memkit.reads.hits",
		metric.WithDescription("Tracked reads that found the key"))
	missCounter, _ = meter.Int64Counter("memkit.reads.misses",
		metric.WithDescription("Retrievals that did not find the key"))
	evictionCounter, _ = meter.Int64Counter("memkit.evictions",
		metric.WithDescription("Keys removed by the eviction engine"))
	persistFailCounter, _ = meter.Int64Counter("memkit.persist.failures",
		metric.WithDescription("Durable writes that soft-failed"))
)

func variantAttr(v Variant) metric.AddOption {
	return metric.WithAttributes(attribute.String("variant", string(v)))
}

func recordHit(ctx context.Context, v Variant) {
	hitCounter.Add(ctx, 1, variantAttr(v))
}

func recordMiss(ctx context.Context, v Variant) {
	missCounter.Add(ctx, 1, variantAttr(v))
}

func recordEvictions(ctx context.Context, v Variant, n int, strategy Strategy) {
	evictionCounter.Add(ctx, int64(n), metric.WithAttributes(
		attribute.String("variant", string(v)),
		attribute.String("strategy", string(strategy)),
	))
}

func recordPersistFailure(ctx context.Context, v Variant) {
	persistFailCounter.Add(ctx, 1, variantAttr(v))
}
