package scheduler

// Package scheduler provides the optional in-process trigger for the alert
// monitoring pipeline. It handles:
// - Per-minute alert checks while a monitored market is open
// - Serializing runs so an overlapping tick is skipped
//
// The job itself is implemented in jobs.go
