// Package tracing wraps OpenTelemetry so engine transitions can be traced
// without callers importing the SDK. Until Init is called spans are no-op.
package tracing
