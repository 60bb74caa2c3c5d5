// Package lifecycle implements the managed-node state machine that gates
// every device interaction in the bridge.
//
// The machine has four primary states plus a transient error state:
//
//	unconfigured ──configure──▶ inactive ──activate──▶ active
//	      ▲                        │  ▲                   │
//	      └───────cleanup──────────┘  └────deactivate─────┘
//
// Shutdown is legal from any non-terminal state and always lands in
// finalized. A callback returning ResultError diverts the machine through
// error_processing, where the error callback decides between recovery
// (back to unconfigured) and finalization.
//
// The machine itself holds no device resources; callbacks own those. It
// guarantees that callbacks never run concurrently and that the externally
// visible state only changes after the callback has returned.
package lifecycle
