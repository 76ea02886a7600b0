// Package job defines download job records, the user-facing task spec, and
// the lifecycle state machine shared by the store, the orchestrator and the
// HTTP facade.
package job
