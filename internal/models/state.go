// ABOUTME: Singleton rows for sync progress tracking and server configuration
// ABOUTME: One SyncState row and one ServerConfig row exist per local store

package models

import "time"

// Sync cycle results.
const (
	SyncSucceeded       = "succeeded"
	SyncPartiallyFailed = "partiallyFailed"
	SyncFailed          = "failed"
)

// SyncState is the singleton row tracking sync progress. It is mutated only
// by the engine, at cycle start and end.
type SyncState struct {
	IsSyncing            bool       // A cycle is in flight
	LastSubscriptionSync *time.Time // Last successful subscription push/pull
	LastProgressSync     *time.Time // Last successful episode-action push/pull
	LastFullSync         *time.Time // Last completed full cycle
	SyncAttempts         int        // Total cycles started
	ConsecutiveFailures  int        // Failed cycles since the last success
	LastResult           string     // One of the Sync* constants (empty before first cycle)
	LastError            *string    // Human-readable error from the last failed cycle
}

// ServerConfig is the singleton row holding the gpodder server identity and
// session. It is mutated by the session manager only.
type ServerConfig struct {
	ServerURL    string     // Base URL of the gpodder-compatible server
	Username     string     // Account identity
	Password     string     // Credentials used to (re)establish a session
	DeviceID     string     // Stable per-installation device identifier
	SessionToken *string    // Current session token; nil before first login
	CreatedAt    time.Time
}

// Configured reports whether enough identity is present to talk to a server.
func (c *ServerConfig) Configured() bool {
	return c != nil && c.ServerURL != "" && c.Username != ""
}
