// Package common contains shared constants and small helpers used across
// reviewdesk components.
package common

// AuthorizationHeaderName carries the bearer access token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName tags every outbound request for log correlation.
const RequestIDHeaderName = "X-Request-ID"
