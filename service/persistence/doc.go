// Package persistence wraps the load, save and clear callbacks of a flow.
// Saves are best effort and suppressed while hydrating; only Clear reports
// failures to its caller.
package persistence
