// Package common contains shared constants and small helpers used across
// SpendSmart client components.
package common

import "time"

// AuthorizationHeaderName carries the bearer token on outbound REST requests.
const AuthorizationHeaderName = "Authorization"

// RequestIDHeaderName carries a per-request identifier so client logs can be
// matched with backend logs.
const RequestIDHeaderName = "X-Request-ID"

// DefaultSessionTTL is how long a signed-in session lives on the client
// before it is expired and cleared.
const DefaultSessionTTL = time.Hour
