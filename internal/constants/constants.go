package constants

import "time"

const (
	DefaultHTTPTimeout = 30 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	RunLockKey        = "reconcile:run_lock"
	DefaultRunLockTTL = 300 * time.Second
)

const (
	DefaultBatchSize       = 5
	DefaultContextBookings = 5
	DefaultPerFolderLimit  = 20
)

const (
	PlaceholderVenue    = "Unknown Venue"
	PlaceholderLocation = "TBD"
	PlaceholderSubject  = "(No Subject)"
	PlaceholderSender   = "(Unknown Sender)"
	PlaceholderNotes    = "Processed by extraction"
)

const (
	DefaultConfidence = 0.5
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)
