// Package session implements the client-side session lifecycle: the
// Controller owning the canonical Session, the subscriber Registry, the
// ActivityMonitor enforcing the inactivity ceiling and the RefreshScheduler
// that renews tokens ahead of expiry.
package session
