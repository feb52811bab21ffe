// Package metrics provides Prometheus collectors for the acquisition
// pipeline, its transports, event dispatch and MQTT publishing.
package metrics

import "github.com/sawring/sawring/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")
