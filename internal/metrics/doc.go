// Package metrics provides an observability framework for publish pipeline metrics.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// all components use NoopRecorder which implements the Recorder interface with
// no-op methods that inline to nothing at compile time.
//
// # Architecture
//
// The metrics system has three components:
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing (zero overhead)
//  3. PrometheusRecorder - Forwards to Prometheus when monitoring is enabled
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	type Publisher struct {
//	    recorder metrics.Recorder
//	}
//
//	func NewPublisher() *Publisher {
//	    return &Publisher{
//	        recorder: metrics.NoopRecorder{}, // Default: no metrics
//	    }
//	}
//
// # Activation
//
// When monitoring.metrics.enabled is set, the server constructs a
// PrometheusRecorder over a fresh registry, injects it into the publisher,
// queue, contact service and HTTP middleware, and exposes HTTPHandler on the
// configured metrics path.
//
// This approach allows:
//   - Zero overhead when metrics are disabled (noop methods inline away)
//   - Metrics activation without code changes (just swap implementation)
//   - Clean testing (inject mock recorder for verification)
package metrics
