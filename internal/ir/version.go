package ir

// Version constants for persisted records.
const (
	// SchemaVersion is stamped into CartMetadata and backup bundles.
	SchemaVersion = "1.0.0"

	// HistoryPrefix tags history snapshot session ids so they never collide
	// with a live session id.
	HistoryPrefix = "history_"
)
