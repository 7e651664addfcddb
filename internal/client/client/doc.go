// Package client contains the transport side of the reviewdesk session
// manager.
//
// # Overview
//
// The package provides:
//  1. The auth backend contract (see the Client interface): Login, Register,
//     Refresh, Logout and Profile.
//  2. A REST/JSON implementation (see HTTPClient) that keeps a cookie jar,
//     tags requests with X-Request-ID, sends bearer tokens, fills in a
//     missing expires_in from the access token's exp claim, and maps HTTP
//     statuses to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Every failure matches one sentinel with errors.Is: ErrUnavailable
// (transport failure, 502/503/504), ErrUnauthorized (401/403), ErrRateLimited
// (429), ErrBadRequest (400/422), ErrConflict (409), ErrServer (other 5xx),
// ErrBadResponse (undecodable body or unexpected status). Non-2xx replies
// are *APIError values carrying the status and the server's message.
//
// # Logout
//
// Logout treats 401 as success: the token being already invalid is the
// expected outcome of logging out twice or after expiry.
package client
