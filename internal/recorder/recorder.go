package recorder

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cycle outcomes.
const (
	CycleOK          = "ok"
	CycleFetchFailed = "fetch_failed"
	CycleStoreFailed = "store_failed"
)

// CycleEvent describes one collection cycle: what the fetch reported and
// whether the observation reached the log.
type CycleEvent struct {
	Outcome      string
	ReportedName string
	Price        decimal.Decimal
	ErrorKind    string
	Duration     time.Duration
}

// DigestEvent records one scheduled digest evaluation.
type DigestEvent struct {
	WindowDays int
	Lowest     decimal.Decimal
	Average    decimal.Decimal
	Samples    int
}

// Recorder persists diagnostic history for analysis. The CSV observation
// log stays the source of truth; this is bookkeeping around it.
type Recorder interface {
	RecordCycle(evt *CycleEvent) error
	RecordDigest(evt *DigestEvent) error
	Close() error
}
