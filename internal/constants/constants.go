// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Processing constants
const (
	// DefaultConcurrency is the default number of images processed in parallel
	DefaultConcurrency = 1

	// MaxConcurrency caps the worker count accepted from flags and the API
	MaxConcurrency = 32

	// DefaultUnknownFolder receives photos without a matched person
	DefaultUnknownFolder = "Unknown"

	// JPEGQuality is the encoder quality used when images are sent to remote services
	JPEGQuality = 95
)

// Service constants
const (
	// ServiceCheckTimeout bounds the startup health check of the vision services
	ServiceCheckTimeout = 10 * time.Second
)

// Identify constants
const (
	// DefaultIdentifyTopK is the default number of candidates returned by identify
	DefaultIdentifyTopK = 5

	// HNSWEfSearch is the search breadth of the identify index
	HNSWEfSearch = 50
)

// Enrollment constants
const (
	// DefaultEmbeddingModel is recorded with enrolled references
	DefaultEmbeddingModel = "buffalo_l"
)

// Distribution constants
const (
	// ReportStatusSuccess marks a delivered archive in the execution report
	ReportStatusSuccess = "SUCCESS"

	// ReportStatusFailed marks a failed delivery
	ReportStatusFailed = "FAILED"

	// ReportStatusSkipped marks a folder without a matching attendee
	ReportStatusSkipped = "SKIPPED"
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)
