// Package constants holds shared server-wide constants.
package constants

import "time"

const (
	// DefaultRequestTimeout is the timeout for most API endpoints
	DefaultRequestTimeout = 60 * time.Second
	// ReconcileRequestTimeout is the extended timeout for the monitoring
	// refresh endpoint, which scans the full content store.
	ReconcileRequestTimeout = 5 * time.Minute

	// ServerWriteTimeout must outlast ReconcileRequestTimeout, otherwise
	// the connection is cut before a long monitoring refresh can answer.
	ServerWriteTimeout = ReconcileRequestTimeout + 30*time.Second

	// RequestSizeLimit caps incoming request bodies.
	RequestSizeLimit = 1 * 1024 * 1024
)
