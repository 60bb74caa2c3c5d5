// Package paramstore persists the bridge's runtime parameter set and a
// lifecycle transition audit trail in the local SQLite database.
//
// Parameters survive restarts: the host loads the persisted set at boot
// and applies it over the config file values, so a set_params change made
// at runtime is not lost when the process cycles. Transitions are append
// only and serve as a post-mortem trail of what the node was doing.
package paramstore
