package api

import (
	"net/http"

	"latchdb/logger"
	"latchdb/storage/latch"
	"latchdb/storage/pools"
)

// WaitHandler exposes the wait registry over HTTP: the semaphore-waits
// table and the raw wait-array dump.
type WaitHandler struct {
	registry *latch.WaitRegistry
}

// NewWaitHandler creates a wait handler over the given registry
func NewWaitHandler(registry *latch.WaitRegistry) *WaitHandler {
	return &WaitHandler{registry: registry}
}

// GetSemaphoreWaits lists every currently waiting thread
// @Summary List semaphore waits
// @Description One row per thread currently parked on a latch, with the latch state
// @Tags introspection
// @Produce json
// @Success 200 {array} latch.WaitSnapshot
// @Security BearerAuth
// @Router /api/v1/semaphore-waits [get]
func (h *WaitHandler) GetSemaphoreWaits(w http.ResponseWriter, r *http.Request) {
	reader := h.registry.Reader()

	// Slots can change between calls; each GetItem stands alone.
	rows := make([]latch.WaitSnapshot, 0)
	for i := 0; i < reader.NItems(); i++ {
		if snap, ok := reader.GetItem(i); ok {
			rows = append(rows, snap)
		}
	}

	logger.TraceIf("waitarr", "semaphore-waits listed %d row(s)", len(rows))
	RespondJSON(w, http.StatusOK, rows)
}

// GetWaitArrayInfo dumps the wait arrays in their diagnostic text form
// @Summary Dump wait arrays
// @Description Reservation counts and every reserved cell, as printed by the monitor
// @Tags introspection
// @Produce plain
// @Success 200 {string} string
// @Security BearerAuth
// @Router /api/v1/wait-array/info [get]
func (h *WaitHandler) GetWaitArrayInfo(w http.ResponseWriter, r *http.Request) {
	buf := pools.GetBuffer()
	defer pools.PutBuffer(buf)

	h.registry.PrintInfo(buf)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
