package utils

import (
	"time"
)

// contextKey namespaces request-scoped values stored in a context
type contextKey string

// Request-scoped context keys
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// HTTP constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400

	// DefaultRequestTimeout bounds a single API call
	DefaultRequestTimeout = 30 * time.Second

	// ExportRequestTimeout bounds workbook exports
	ExportRequestTimeout = 2 * time.Minute
)
