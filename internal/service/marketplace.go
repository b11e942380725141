// Package service contains the marketplace engine: the only component that
// mutates load and booking statuses. Every transition runs inside a single
// database transaction with a status-guarded update, so concurrent attempts
// against the same load or booking are totally ordered by the store and at
// most one active booking ever exists per load.
package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/iliyamo/freight-load-board/internal/audit"
	"github.com/iliyamo/freight-load-board/internal/repository"
)

// txAttempts bounds the retry loop for transient store failures.
const txAttempts = 3

// Marketplace drives the load and booking state machines. All public
// operations are request/response and honor the caller's context deadline;
// on timeout the underlying transaction rolls back with no partial state.
type Marketplace struct {
	db       *sql.DB
	loads    *repository.LoadRepo
	bookings *repository.BookingRepo
	sink     audit.Sink
}

// NewMarketplace constructs the engine. All dependencies must be non-nil.
func NewMarketplace(db *sql.DB, loads *repository.LoadRepo, bookings *repository.BookingRepo, sink audit.Sink) *Marketplace {
	if db == nil || loads == nil || bookings == nil || sink == nil {
		panic("nil dependency passed to NewMarketplace")
	}
	return &Marketplace{db: db, loads: loads, bookings: bookings, sink: sink}
}

// CreateBookingInput carries the driver's claim details. RateCents of zero
// means "at the posted rate"; whatever rate is captured here is immutable
// for the life of the booking.
type CreateBookingInput struct {
	LoadID        uint64
	RateCents     uint32
	TruckNumber   string
	TrailerNumber string
	LicensePlate  string
	Notes         string
}

// CreateBooking atomically claims a load for a driver: it re-verifies the
// load is AVAILABLE, flips it to BOOKED, and inserts a PENDING booking, all
// in one transaction. Under concurrent claims for the same load exactly one
// caller succeeds; the rest receive ErrLoadNotAvailable.
func (m *Marketplace) CreateBooking(ctx context.Context, driverID uint64, in CreateBookingInput) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		ld, err := m.loads.GetTx(ctx, tx, in.LoadID)
		if err != nil {
			return err
		}
		dup, err := m.bookings.HasLiveForDriverTx(ctx, tx, in.LoadID, driverID)
		if err != nil {
			return err
		}
		if dup {
			return repository.ErrDuplicateBooking
		}
		if err := m.loads.ClaimTx(ctx, tx, in.LoadID); err != nil {
			return err
		}
		rate := in.RateCents
		if rate == 0 {
			rate = ld.RateCents
		}
		b := &repository.Booking{
			LoadID:        ld.ID,
			DriverID:      driverID,
			BrokerID:      ld.BrokerID, // derived from the load, never mutated afterwards
			RateCents:     rate,
			TruckNumber:   in.TruckNumber,
			TrailerNumber: in.TrailerNumber,
			LicensePlate:  in.LicensePlate,
			Notes:         in.Notes,
		}
		if err := m.bookings.CreateTx(ctx, tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, driverID, audit.TxBookingCreated, booking.ID, nil, map[string]string{
		"load_id":   strconv.FormatUint(booking.LoadID, 10),
		"driver_id": strconv.FormatUint(booking.DriverID, 10),
		"broker_id": strconv.FormatUint(booking.BrokerID, 10),
	})
	return booking, nil
}

// ConfirmBooking lets the owning broker accept a pending booking, recording
// the rate confirmation number. A missing booking, a foreign broker and a
// non-pending status all surface as ErrBookingNotFound.
func (m *Marketplace) ConfirmBooking(ctx context.Context, brokerID, bookingID uint64, rateConfirmation string) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		b, err := m.bookings.GetForBrokerTx(ctx, tx, bookingID, brokerID)
		if err != nil {
			return err
		}
		now := stamp()
		ok, err := m.bookings.ConfirmTx(ctx, tx, b.ID, rateConfirmation, now)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrBookingNotFound
		}
		b.Status = repository.BookingStatusConfirmed
		b.RateConfirmation = &rateConfirmation
		b.ConfirmedAt = &now
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, brokerID, audit.TxBookingConfirmed, booking.ID, &booking.RateCents, map[string]string{
		"load_id":           strconv.FormatUint(booking.LoadID, 10),
		"driver_id":         strconv.FormatUint(booking.DriverID, 10),
		"rate_confirmation": rateConfirmation,
	})
	return booking, nil
}

// RejectBooking lets the owning broker decline a pending booking. The load
// stays BOOKED so it does not silently reappear in search; RelistLoad is the
// explicit way back to AVAILABLE.
func (m *Marketplace) RejectBooking(ctx context.Context, brokerID, bookingID uint64, reason string) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		b, err := m.bookings.GetForBrokerTx(ctx, tx, bookingID, brokerID)
		if err != nil {
			return err
		}
		now := stamp()
		ok, err := m.bookings.RejectTx(ctx, tx, b.ID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrBookingNotFound
		}
		b.Status = repository.BookingStatusRejected
		b.RejectReason = &reason
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, brokerID, audit.TxBookingRejected, booking.ID, nil, map[string]string{
		"load_id":   strconv.FormatUint(booking.LoadID, 10),
		"driver_id": strconv.FormatUint(booking.DriverID, 10),
		"reason":    reason,
	})
	return booking, nil
}

// MarkPickedUp records pickup by the booking's driver and cascades the load
// to IN_TRANSIT in the same transaction, so the two rows never expose a torn
// state. A foreign booking is ErrBookingNotFound; a stale status is
// ErrInvalidState.
func (m *Marketplace) MarkPickedUp(ctx context.Context, driverID, bookingID uint64, bolNumber, signature string) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		b, err := m.bookings.GetForDriverTx(ctx, tx, bookingID, driverID)
		if err != nil {
			return err
		}
		now := stamp()
		ok, err := m.bookings.MarkPickedUpTx(ctx, tx, b.ID, bolNumber, signature, now)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvalidState
		}
		ok, err = m.loads.UpdateStatusTx(ctx, tx, b.LoadID, repository.LoadStatusBooked, repository.LoadStatusInTransit)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvalidState
		}
		b.Status = repository.BookingStatusInTransit
		b.BOLNumber = &bolNumber
		b.PickupSignature = &signature
		b.PickedUpAt = &now
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// MarkDelivered records delivery by the booking's driver and cascades the
// load to DELIVERED in the same transaction.
func (m *Marketplace) MarkDelivered(ctx context.Context, driverID, bookingID uint64, signature, podReference string) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		b, err := m.bookings.GetForDriverTx(ctx, tx, bookingID, driverID)
		if err != nil {
			return err
		}
		now := stamp()
		ok, err := m.bookings.MarkDeliveredTx(ctx, tx, b.ID, signature, podReference, now)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvalidState
		}
		ok, err = m.loads.UpdateStatusTx(ctx, tx, b.LoadID, repository.LoadStatusInTransit, repository.LoadStatusDelivered)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvalidState
		}
		b.Status = repository.BookingStatusDelivered
		b.DeliverySignature = &signature
		b.PODReference = &podReference
		b.DeliveredAt = &now
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// CompleteBooking settles payment: the owning broker marks the delivered
// booking COMPLETED and PAID, and the load cascades to COMPLETED in the same
// transaction. The audit record carries the agreed rate as the settled
// amount. paymentDate is a calendar date (YYYY-MM-DD).
func (m *Marketplace) CompleteBooking(ctx context.Context, brokerID, bookingID uint64, paymentDate, invoiceRef string) (*repository.Booking, error) {
	var booking *repository.Booking
	err := m.withTx(ctx, func(tx *sql.Tx) error {
		b, err := m.bookings.GetForBrokerTx(ctx, tx, bookingID, brokerID)
		if err != nil {
			return err
		}
		now := stamp()
		ok, err := m.bookings.CompleteTx(ctx, tx, b.ID, paymentDate, invoiceRef, now)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrBookingNotFound
		}
		ok, err = m.loads.UpdateStatusTx(ctx, tx, b.LoadID, repository.LoadStatusDelivered, repository.LoadStatusCompleted)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrInvalidState
		}
		b.Status = repository.BookingStatusCompleted
		b.PaymentStatus = repository.PaymentStatusPaid
		b.PaymentDate = &paymentDate
		b.InvoiceRef = &invoiceRef
		b.CompletedAt = &now
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.emit(ctx, brokerID, audit.TxBookingCompleted, booking.ID, &booking.RateCents, map[string]string{
		"load_id":      strconv.FormatUint(booking.LoadID, 10),
		"driver_id":    strconv.FormatUint(booking.DriverID, 10),
		"payment_date": paymentDate,
		"invoice_ref":  invoiceRef,
	})
	return booking, nil
}

// CancelLoad cancels a broker's own load. A load with a live booking cannot
// be cancelled (ErrConflict); a missing, foreign or already-terminal load is
// ErrLoadNotFound.
func (m *Marketplace) CancelLoad(ctx context.Context, brokerID, loadID uint64) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		live, err := m.bookings.HasLiveForLoadTx(ctx, tx, loadID)
		if err != nil {
			return err
		}
		if live {
			return repository.ErrConflict
		}
		ok, err := m.loads.CancelTx(ctx, tx, loadID, brokerID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrLoadNotFound
		}
		return nil
	})
}

// RelistLoad returns a BOOKED load to AVAILABLE after its booking was
// rejected. The live-booking check and the status swap share a transaction,
// so a relist can never race a confirmation into two active bookings.
func (m *Marketplace) RelistLoad(ctx context.Context, brokerID, loadID uint64) error {
	return m.withTx(ctx, func(tx *sql.Tx) error {
		live, err := m.bookings.HasLiveForLoadTx(ctx, tx, loadID)
		if err != nil {
			return err
		}
		if live {
			return repository.ErrConflict
		}
		ok, err := m.loads.RelistTx(ctx, tx, loadID, brokerID)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrLoadNotFound
		}
		return nil
	})
}

// ExpireLoads demotes AVAILABLE loads past their expires_at to EXPIRED and
// returns how many rows changed. Idempotent; safe alongside live bookings.
func (m *Marketplace) ExpireLoads(ctx context.Context) (int64, error) {
	return m.loads.ExpireAvailable(ctx)
}

// RunExpirySweep runs ExpireLoads on a fixed interval until ctx is
// cancelled. Intended to be started as a goroutine from main.
func (m *Marketplace) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.ExpireLoads(ctx)
			if err != nil {
				log.Printf("expiry-sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry-sweep: expired %d load(s)", n)
			}
		}
	}
}

// withTx runs fn inside a transaction, retrying a bounded number of times
// with doubling backoff when the failure is transient. A transient failure
// that survives every attempt is reported as ErrStoreUnavailable.
func (m *Marketplace) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	backoff := 100 * time.Millisecond
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		err = m.runTx(ctx, fn)
		if err == nil || !isTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
}

func (m *Marketplace) runTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func isTransient(err error) bool {
	return errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone)
}

// emit writes one audit record and absorbs any failure: audit problems are
// logged at warning level and never fail the already-committed transition.
func (m *Marketplace) emit(ctx context.Context, actorID uint64, txType string, bookingID uint64, amount *uint32, details map[string]string) {
	rec := audit.Record{
		ActorID:         actorID,
		TransactionType: txType,
		EntityType:      "booking",
		EntityID:        bookingID,
		AmountCents:     amount,
		Details:         details,
		RecordedAt:      stamp(),
	}
	if err := m.sink.Record(ctx, rec); err != nil {
		log.Printf("marketplace: warning: audit write failed for %s booking %d: %v", txType, bookingID, err)
	}
}

func stamp() string { return time.Now().UTC().Format(repository.TimeLayout) }
