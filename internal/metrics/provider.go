// Package metrics exports consent core metrics through OpenTelemetry and a
// Prometheus registry.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Provider owns the meter provider and the registry scraped on /metrics.
type Provider struct {
	meterProvider *metric.MeterProvider
	exporter      *promexporter.Exporter
	registry      *prometheus.Registry
}

// ProviderOption customises NewProvider.
type ProviderOption func(*providerOptions)

type providerOptions struct {
	attributes     []attribute.KeyValue
	runtimeMetrics bool
}

// WithResourceAttributes adds attributes to the exported target_info series.
func WithResourceAttributes(attrs ...attribute.KeyValue) ProviderOption {
	return func(o *providerOptions) {
		o.attributes = append(o.attributes, attrs...)
	}
}

// WithRuntimeMetrics also registers the Go runtime and process collectors.
func WithRuntimeMetrics() ProviderOption {
	return func(o *providerOptions) {
		o.runtimeMetrics = true
	}
}

// NewProvider builds a provider whose resource carries service.name=namespace.
func NewProvider(namespace string, opts ...ProviderOption) (*Provider, error) {
	options := providerOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	registry := prometheus.NewRegistry()
	if options.runtimeMetrics {
		if err := registry.Register(collectors.NewGoCollector()); err != nil {
			return nil, fmt.Errorf("failed to register go collector: %w", err)
		}
		err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		if err != nil {
			return nil, fmt.Errorf("failed to register process collector: %w", err)
		}
	}

	exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	attrs := append([]attribute.KeyValue{attribute.String("service.name", namespace)}, options.attributes...)
	return &Provider{
		meterProvider: metric.NewMeterProvider(
			metric.WithReader(exporter),
			metric.WithResource(resource.NewSchemaless(attrs...)),
		),
		exporter: exporter,
		registry: registry,
	}, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (p *Provider) MeterProvider() *metric.MeterProvider {
	return p.meterProvider
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
