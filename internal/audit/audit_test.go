package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestFormatLine(t *testing.T) {
	amount := uint32(100000)
	rec := Record{
		ActorID:         1,
		TransactionType: TxBookingCompleted,
		EntityType:      "booking",
		EntityID:        12,
		AmountCents:     &amount,
		Details: map[string]string{
			"payment_date": "2024-01-15",
			"invoice_ref":  "INV-3301",
		},
		RecordedAt: "2024-01-15 09:30:00",
	}
	want := "[2024-01-15 09:30:00] booking_completed | actor=1 | booking=12 | amount=100000 cents | invoice_ref=INV-3301 payment_date=2024-01-15\n"
	if got := formatLine(rec); got != want {
		t.Fatalf("formatLine mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestFormatLineNoAmountNoDetails(t *testing.T) {
	rec := Record{
		ActorID:         7,
		TransactionType: TxBookingCreated,
		EntityType:      "booking",
		EntityID:        12,
		RecordedAt:      "2024-01-10 08:00:00",
	}
	want := "[2024-01-10 08:00:00] booking_created | actor=7 | booking=12 | amount=-\n"
	if got := formatLine(rec); got != want {
		t.Fatalf("formatLine mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestMemorySinkAppendsInOrder(t *testing.T) {
	s := NewMemorySink()
	ctx := context.Background()
	for _, typ := range []string{TxBookingCreated, TxBookingConfirmed, TxBookingCompleted} {
		if err := s.Record(ctx, Record{TransactionType: typ}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	recs := s.Records()
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[1].TransactionType != TxBookingConfirmed {
		t.Fatalf("order not preserved: %v", recs)
	}
}

func TestMemorySinkSimulatedFailure(t *testing.T) {
	s := NewMemorySink()
	s.Err = errors.New("down")
	if err := s.Record(context.Background(), Record{TransactionType: TxBookingCreated}); err == nil {
		t.Fatal("expected simulated failure")
	}
	if len(s.Records()) != 0 {
		t.Fatal("failing sink must drop the record")
	}
}

func TestMemorySinkConcurrentWriters(t *testing.T) {
	s := NewMemorySink()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(context.Background(), Record{EntityID: uint64(i)})
		}(i)
	}
	wg.Wait()
	if len(s.Records()) != 20 {
		t.Fatalf("expected 20 records, got %d", len(s.Records()))
	}
}
