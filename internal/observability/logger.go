// Package observability wires the Prometheus registry that backs /metrics.
package observability

import "github.com/sawring/sawring/internal/logger"

var log = logger.Global().Module("telemetry")
