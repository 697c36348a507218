package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultMaxMemoryMB = 48
)

// Background task intervals
const (
	AuditInterval    = 24 * time.Hour
	BadgerGCInterval = 10 * time.Minute
)

// Query timeouts and defaults
const (
	QueryTimeout      = 30 * time.Second
	QueryStatsTimeout = 5 * time.Second
)

// Intake timeouts and limits
const (
	IngestTimeout       = 5 * time.Second
	IngestLookupTimeout = 10 * time.Second
)

// Backfill limits
const (
	BackfillTimeout = 5 * time.Minute
	BackfillMinYear = 2000
	BackfillMaxYear = 2200
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)
