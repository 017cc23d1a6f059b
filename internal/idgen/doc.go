// Package idgen generates flow and subscription identifiers. Callers treat
// them as opaque strings; tests may replace NewFunc.
package idgen
