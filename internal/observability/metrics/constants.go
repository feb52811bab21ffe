package metrics

import "time"

// Label values shared across collectors.
const (
	// LabelStart is the event kind label for an event start.
	LabelStart = "start"
	// LabelEnd is the event kind label for an event end.
	LabelEnd = "end"
	// LabelSuccess marks a successful delivery.
	LabelSuccess = "success"
	// LabelError marks a failed delivery.
	LabelError = "error"
)

// Histogram bucket configuration constants.
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketStart64B is the starting bucket for 64 byte histograms.
	BucketStart64B = 64.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2

	// BucketCount10 defines 10 exponential buckets.
	BucketCount10 = 10
	// BucketCount12 defines 12 exponential buckets.
	BucketCount12 = 12
)

// ShutdownTimeout is the timeout for graceful shutdown of the metrics listener.
const ShutdownTimeout = 5 * time.Second
