// Package event provides the typed publish/subscribe hub of the engine.
//
// Notification topics deliver to every listener in registration order on
// the publishing goroutine; a listener error or panic is logged and does not
// reach its siblings. Guard topics collect Decision values one listener at a
// time and stop at the first cancel or failure.
package event
