//go:build !race

package latch

const timeoutMultiplier = 1
