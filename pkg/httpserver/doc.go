// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run blocks until its context is cancelled, SIGINT/SIGTERM arrives or the
// listener fails. Request contexts derive from a base context that is
// cancelled when shutdown starts, so long-lived streams (server-sent events)
// end promptly instead of holding shutdown open until the timeout.
package httpserver
