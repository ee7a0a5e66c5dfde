// Package scheduler drives the watcher: one priming cycle at startup, then
// a cycle per tick of a fixed schedule, and a final state flush on shutdown.
//
// Ticks never queue. A tick that fires while a cycle is still running is
// dropped.
package scheduler
