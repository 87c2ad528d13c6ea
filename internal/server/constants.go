// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection command rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Transcript entries returned by the REST endpoint
	TranscriptAPILimit = 60
)
