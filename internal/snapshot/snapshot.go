package snapshot

import (
	"sync/atomic"

	"uptimeledger/internal/models"
)

// Holder keeps the most recently persisted ledger for read-only consumers.
type Holder struct {
	current atomic.Pointer[models.Ledger]
}

// Publish replaces the current ledger. The holder keeps its own copy.
func (h *Holder) Publish(l models.Ledger) {
	c := l.Clone()
	h.current.Store(&c)
}

// Get returns the latest ledger, or false if nothing was published yet.
// Callers must not modify the returned value.
func (h *Holder) Get() (models.Ledger, bool) {
	if v := h.current.Load(); v != nil {
		return *v, true
	}
	return models.Ledger{}, false
}
