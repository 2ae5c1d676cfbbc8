/*
Package observability turns engine lifecycle hooks into structured logs and Prometheus metrics.

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	...
	engine, err := callgate.New(store,
		callgate.WithLifecycleHooks(observability.LoggingHooks(logger)),
		callgate.WithLifecycleHooks(metrics.Hooks()),
	)
*/
package observability
