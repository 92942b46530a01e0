package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// unmatchedRoute labels requests that hit no route, so probing random paths
// cannot grow the label set.
const unmatchedRoute = "unmatched"

// healthRoutes are polled by orchestrators and left out of the request metrics.
var healthRoutes = map[string]bool{
	"/health": true,
	"/ready":  true,
}

type httpInstruments struct {
	requests  metric.Int64Counter
	latencies metric.Float64Histogram
	inFlight  metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter, namespace string) (*httpInstruments, error) {
	requests, err := meter.Int64Counter(
		namespace+"_http_requests_total",
		metric.WithDescription("HTTP requests by method, route and status code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	latencies, err := meter.Float64Histogram(
		namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter(
		namespace+"_http_requests_in_flight",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	return &httpInstruments{requests: requests, latencies: latencies, inFlight: inFlight}, nil
}

// HTTPMetricsMiddleware records request counts, latencies and in-flight
// requests labelled by route pattern (e.g. /v1/consents/:consentId).
// If the instruments cannot be created the middleware records nothing.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	instruments, err := newHTTPInstruments(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}
	return instruments.observe
}

func (h *httpInstruments) observe(c *gin.Context) {
	route := routeLabel(c.FullPath())
	if healthRoutes[route] {
		c.Next()
		return
	}

	ctx := c.Request.Context()
	method := attribute.String("method", c.Request.Method)
	h.inFlight.Add(ctx, 1, metric.WithAttributes(method))
	start := time.Now()

	c.Next()

	h.inFlight.Add(ctx, -1, metric.WithAttributes(method))
	attrs := metric.WithAttributes(
		method,
		attribute.String("path", route),
		attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
	)
	h.requests.Add(ctx, 1, attrs)
	h.latencies.Record(ctx, time.Since(start).Seconds(), attrs)
}

func routeLabel(fullPath string) string {
	if fullPath == "" {
		return unmatchedRoute
	}
	return fullPath
}
