// Package state holds the lifecycle flags of an engine and derives its
// public state on demand.
package state
