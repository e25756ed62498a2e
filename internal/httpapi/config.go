package httpapi

import "time"

// maxBodyBytes bounds the POST /api request body.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes sets the body limit; non-positive values restore 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// queryTimeout bounds one POST /api request. Zero means no extra timeout.
var queryTimeout time.Duration

// SetQueryTimeoutSeconds sets the query timeout in seconds (0 disables).
func SetQueryTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	queryTimeout = time.Duration(sec) * time.Second
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
