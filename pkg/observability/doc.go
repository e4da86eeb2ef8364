/*
Package observability turns project and script lifecycle events into logs
and Prometheus metrics.

Both are delivered as domain.LifecycleHooks, so any combination can be passed
to project.WithHooks and script.WithHooks:

	metrics := observability.NewMetrics()
	hooks := observability.Combine(metrics.Hooks(), observability.LogHooks(logger))
*/
package observability
