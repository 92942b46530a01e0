package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine matches a sample by name, a partial label pattern and its
// value. The exporter adds otel_scope labels, hence the regexp.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	assert.Regexp(t, name+`\{[^}]*`+labels+`[^}]*\} `+value, output)
}

func newTestBusinessMetrics(t *testing.T, namespace string) (*Provider, BusinessMetrics) {
	t.Helper()
	provider, err := NewProvider(namespace)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, provider.Shutdown(context.Background())) })

	bm, err := NewBusinessMetrics(provider.MeterProvider(), namespace)
	require.NoError(t, err)
	return provider, bm
}

func TestBusinessMetrics_Operations(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "biz")
	ctx := context.Background()

	bm.RecordOperation(ctx, "consents", "consent_create", "success")
	bm.RecordOperation(ctx, "consents", "consent_create", "success")
	bm.RecordOperation(ctx, "consents", "consent_create", "error")
	bm.RecordOperation(ctx, "authorisations", "authorisation_update", "success")

	output := scrape(t, provider)
	assertMetricLine(t, output, `biz_operations_total`,
		`domain="consents".*operation="consent_create".*status="success"`, `2`)
	assertMetricLine(t, output, `biz_operations_total`,
		`domain="consents".*operation="consent_create".*status="error"`, `1`)
	assertMetricLine(t, output, `biz_operations_total`,
		`domain="authorisations".*operation="authorisation_update".*status="success"`, `1`)
}

func TestBusinessMetrics_Durations(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "biz")
	ctx := context.Background()

	bm.RecordDuration(ctx, "expiration", "expire_unconfirmed", 500*time.Millisecond, "success")
	bm.RecordDuration(ctx, "expiration", "expire_unconfirmed", time.Second, "success")

	output := scrape(t, provider)
	assertMetricLine(t, output, `biz_operation_duration_seconds_count`,
		`domain="expiration".*operation="expire_unconfirmed".*status="success"`, `2`)
	assertMetricLine(t, output, `biz_operation_duration_seconds_sum`,
		`domain="expiration".*operation="expire_unconfirmed".*status="success"`, `1\.5`)
}

func TestBusinessMetrics_StatusTransitions(t *testing.T) {
	provider, bm := newTestBusinessMetrics(t, "biz")
	ctx := context.Background()

	bm.RecordStatusTransition(ctx, "expiration", "VALID", "EXPIRED")
	bm.RecordStatusTransition(ctx, "expiration", "VALID", "EXPIRED")
	bm.RecordStatusTransition(ctx, "expiration", "RECEIVED", "EXPIRED")

	output := scrape(t, provider)
	assertMetricLine(t, output, `biz_status_transitions_total`,
		`domain="expiration".*from="VALID".*to="EXPIRED"`, `2`)
	assertMetricLine(t, output, `biz_status_transitions_total`,
		`domain="expiration".*from="RECEIVED".*to="EXPIRED"`, `1`)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	noOp := NewNoOpBusinessMetrics()
	require.IsType(t, &NoOpBusinessMetrics{}, noOp)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		noOp.RecordOperation(ctx, "consents", "consent_create", "success")
		noOp.RecordDuration(ctx, "consents", "consent_create", time.Second, "error")
		noOp.RecordStatusTransition(ctx, "expiration", "VALID", "EXPIRED")
	})
}
