package app

import (
	"fmt"

	"github.com/careops/scheduling/internal/metrics"
)

// MetricsProvider returns the OpenTelemetry metrics provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}

		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}
		c.metricsProvider = provider
	})
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// returned when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["businessMetrics"] = err
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}

		businessMetrics, err := metrics.NewBusinessMetrics(
			provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["businessMetrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}
		c.businessMetrics = businessMetrics
	})
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// OutboxMetrics returns the outbox dispatcher metrics recorder. The pending
// queue depth gauge samples the outbox repository on every scrape.
func (c *Container) OutboxMetrics() (metrics.OutboxMetrics, error) {
	c.outboxMetricsInit.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["outboxMetrics"] = err
			return
		}
		if provider == nil {
			c.outboxMetrics = metrics.NewNoOpOutboxMetrics()
			return
		}

		outboxRepo, err := c.OutboxRepository()
		if err != nil {
			c.initErrors["outboxMetrics"] = fmt.Errorf("failed to get outbox repository for outbox metrics: %w", err)
			return
		}

		outboxMetrics, err := metrics.NewOutboxMetrics(
			provider.MeterProvider(), c.config.MetricsNamespace, outboxRepo)
		if err != nil {
			c.initErrors["outboxMetrics"] = fmt.Errorf("failed to create outbox metrics: %w", err)
			return
		}
		c.outboxMetrics = outboxMetrics
	})
	if storedErr, exists := c.initErrors["outboxMetrics"]; exists {
		return nil, storedErr
	}
	return c.outboxMetrics, nil
}
