package audit

import (
	"context"
	"sync"
)

// MemorySink is an in-memory Sink used in tests and broker-less runs. It
// keeps records in append order behind a mutex.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	// Err, when set, is returned from Record after the record is dropped.
	// Tests use it to exercise the swallow-audit-failures policy.
	Err error
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Record appends rec to the in-memory log, or drops it and returns Err
// when a failure is being simulated.
func (s *MemorySink) Record(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.records = append(s.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (s *MemorySink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
