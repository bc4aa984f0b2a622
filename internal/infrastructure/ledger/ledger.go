// Package ledger tracks accumulated LLM spend per session. In-process
// only: totals reset on restart and are never aggregated across
// instances.
package ledger

import (
	"sync"
)

// CostLedger maps session identifiers to running USD totals. The
// read-modify-write sequence is serialized; safe for concurrent pipeline
// calls.
type CostLedger struct {
	mu     sync.Mutex
	totals map[string]float64
}

// NewCostLedger creates an empty ledger.
func NewCostLedger() *CostLedger {
	return &CostLedger{
		totals: make(map[string]float64),
	}
}

// Record accumulates cost into the session's running total.
func (l *CostLedger) Record(sessionID string, costUSD float64) {
	if sessionID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totals[sessionID] += costUSD
}

// Total returns the session's accumulated spend, 0 for unknown sessions.
func (l *CostLedger) Total(sessionID string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID]
}

// WouldExceed reports whether adding additionalUSD would push the
// session's total over ceilingUSD. Pessimistic: callers pass the pre-call
// estimate.
func (l *CostLedger) WouldExceed(sessionID string, additionalUSD, ceilingUSD float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totals[sessionID]+additionalUSD > ceilingUSD
}
