// Package checklist implements completion rules for checklist steps:
// mandatory and optional items, conditional visibility, an optional minimum
// count and progress computation. Item states live in the flow context under
// the checklist data key.
package checklist
