package constants

import "time"

// Platform endpoints
const (
	// DeviceRegistryURL is the WDM endpoint managing device registrations
	DeviceRegistryURL = "https://wdm-a.wbx2.com/wdm/api/v1/devices"
	// APIBaseURL is the base URL of the public REST API
	APIBaseURL = "https://api.ciscospark.com/v1"
)

// Timeouts and delays
const (
	// DefaultHTTPTimeout is the timeout for REST calls to the platform
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultBackoffInitial is the first reconnect delay after a socket drop
	DefaultBackoffInitial = 1 * time.Second
	// DefaultBackoffMax caps the reconnect delay growth
	DefaultBackoffMax = 60 * time.Second
	// MinHealthySession is how long a socket connection must survive before
	// the reconnect backoff resets; shorter sessions keep backing off
	MinHealthySession = 10 * time.Second
)

// Socket limits
const (
	// MaxFrameSize is the maximum inbound socket frame size in bytes
	MaxFrameSize = 32768
)

// Dispatch configuration
const (
	// DefaultWorkerCount is the default worker pool size for handler execution
	DefaultWorkerCount = 4
	// DispatchQueueSize is the buffer size of the dispatch job channel
	DispatchQueueSize = 64
)

// Token masking
const (
	// MinTokenLengthForMasking is the minimum token length to apply masking
	MinTokenLengthForMasking = 10
	// TokenMaskPrefixLength is the length of prefix to show before masking
	TokenMaskPrefixLength = 4
	// TokenMaskSuffixLength is the length of suffix to show after masking
	TokenMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)
