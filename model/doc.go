// Package model defines the flow data model: steps and their navigation
// edges, the flow context, the history stack, checklist definitions, the
// derived engine state, stored snapshots and the error taxonomy.
package model
