package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersShutsDownCleanly(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "sodapd", ChainID: 7})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("api-key=abc, =skip,broken, x = y ")
	require.Equal(t, map[string]string{"api-key": "abc", "x": "y"}, headers)
}

func TestSamplerBounds(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
	var _ sdktrace.Sampler = sampler(1)
}

func TestOperationSpanWithoutExporter(t *testing.T) {
	ctx, span := StartOperation(context.Background(), "purchase_cart")
	require.NotNil(t, ctx)
	require.NotPanics(t, func() { EndOperation(ctx, span, "purchase_cart", 3, "ok", nil) })
}

func TestOperationCounterExportsThroughInstalledProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ctx, span := StartOperation(context.Background(), "register_store")
	EndOperation(ctx, span, "register_store", 1, "ok", nil)
	ctx, span = StartOperation(context.Background(), "register_store")
	EndOperation(ctx, span, "register_store", 0, "AlreadyExists", errors.New("store exists"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	require.Len(t, sum.DataPoints, 2)
	require.Equal(t, int64(2), total)
}
