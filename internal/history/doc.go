// Package history records the terminal outcome of every configuration flow
// in the flow_history table and serves it back, newest first, for the API.
package history
