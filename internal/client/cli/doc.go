// Package cli provides the interactive reviewdesk command-line client.
//
// It wires configuration, the local sqlite credential store, the auth
// backend client and the session controller, then runs a REPL on top of
// them. The REPL subscribes to session changes, so sign-outs the controller
// performs on its own (refresh failure, inactivity) show up immediately.
//
// Key features:
//   - Register / Login / Logout
//   - Session restore on start-up
//   - Manual token refresh and session status
//   - Local profile rename
//   - Session counters (stats)
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, Root, and runREPL for details.
package cli
