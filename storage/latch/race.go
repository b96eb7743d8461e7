//go:build race

package latch

// The race detector slows execution enough to trip the long-wait monitor
// on healthy waits; stretch the thresholds.
const timeoutMultiplier = 10
