// Package transition computes direction-aware navigation candidates and
// walks past steps hidden by their conditions.
package transition
