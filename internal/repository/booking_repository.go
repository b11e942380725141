package repository

import (
	"context"
	"database/sql"
)

// Booking statuses. A booking only moves forward along
// PENDING -> CONFIRMED -> IN_TRANSIT -> DELIVERED -> COMPLETED, with the
// single PENDING -> REJECTED branch. CANCELLED is reserved and never
// written by any current transition.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusInTransit = "IN_TRANSIT"
	BookingStatusDelivered = "DELIVERED"
	BookingStatusCompleted = "COMPLETED"
	BookingStatusRejected  = "REJECTED"
	BookingStatusCancelled = "CANCELLED"
)

// Payment statuses for a booking.
const (
	PaymentStatusUnpaid = "UNPAID"
	PaymentStatusPaid   = "PAID"
)

// Booking represents a driver's claim on a load. The broker_id is
// denormalized from the load at claim time for query convenience and is
// never independently mutated; ownership checks always join through the
// loads table instead of trusting this copy. RateCents is captured at
// creation time and immutable thereafter.
type Booking struct {
	ID                uint64  `json:"id"`
	LoadID            uint64  `json:"load_id"`
	DriverID          uint64  `json:"driver_id"`
	BrokerID          uint64  `json:"broker_id"`
	Status            string  `json:"status"`
	RateCents         uint32  `json:"rate_cents"`
	TruckNumber       string  `json:"truck_number"`
	TrailerNumber     string  `json:"trailer_number"`
	LicensePlate      string  `json:"license_plate"`
	Notes             string  `json:"notes"`
	RateConfirmation  *string `json:"rate_confirmation,omitempty"`
	BOLNumber         *string `json:"bol_number,omitempty"`
	PickupSignature   *string `json:"pickup_signature,omitempty"`
	DeliverySignature *string `json:"delivery_signature,omitempty"`
	PODReference      *string `json:"pod_reference,omitempty"`
	InvoiceRef        *string `json:"invoice_ref,omitempty"`
	RejectReason      *string `json:"reject_reason,omitempty"`
	PaymentStatus     string  `json:"payment_status"`
	PaymentDate       *string `json:"payment_date,omitempty"`
	ConfirmedAt       *string `json:"confirmed_at,omitempty"`
	PickedUpAt        *string `json:"picked_up_at,omitempty"`
	DeliveredAt       *string `json:"delivered_at,omitempty"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// BookingRepo manages persistence for bookings.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.load_id, b.driver_id, b.broker_id, b.status, b.rate_cents,
	b.truck_number, b.trailer_number, b.license_plate, b.notes,
	b.rate_confirmation, b.bol_number, b.pickup_signature, b.delivery_signature,
	b.pod_reference, b.invoice_ref, b.reject_reason, b.payment_status, b.payment_date,
	b.confirmed_at, b.picked_up_at, b.delivered_at, b.completed_at, b.created_at, b.updated_at`

func scanBooking(row interface {
	Scan(dest ...interface{}) error
}) (*Booking, error) {
	var b Booking
	var opt [12]sql.NullString
	err := row.Scan(
		&b.ID, &b.LoadID, &b.DriverID, &b.BrokerID, &b.Status, &b.RateCents,
		&b.TruckNumber, &b.TrailerNumber, &b.LicensePlate, &b.Notes,
		&opt[0], &opt[1], &opt[2], &opt[3], &opt[4], &opt[5], &opt[6], &b.PaymentStatus, &opt[7],
		&opt[8], &opt[9], &opt[10], &opt[11], &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	assign := func(dst **string, src sql.NullString) {
		if src.Valid {
			v := src.String
			*dst = &v
		}
	}
	assign(&b.RateConfirmation, opt[0])
	assign(&b.BOLNumber, opt[1])
	assign(&b.PickupSignature, opt[2])
	assign(&b.DeliverySignature, opt[3])
	assign(&b.PODReference, opt[4])
	assign(&b.InvoiceRef, opt[5])
	assign(&b.RejectReason, opt[6])
	assign(&b.PaymentDate, opt[7])
	assign(&b.ConfirmedAt, opt[8])
	assign(&b.PickedUpAt, opt[9])
	assign(&b.DeliveredAt, opt[10])
	assign(&b.CompletedAt, opt[11])
	return &b, nil
}

// CreateTx inserts a new PENDING booking within the caller's transaction,
// the same transaction that claimed the load, so the load flip and the
// booking insert commit or roll back as one unit. The generated ID and
// timestamps are populated on the given Booking.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *Booking) error {
	now := nowStamp()
	b.Status = BookingStatusPending
	b.PaymentStatus = PaymentStatusUnpaid
	b.CreatedAt = now
	b.UpdatedAt = now
	const q = `INSERT INTO bookings (load_id, driver_id, broker_id, status, rate_cents,
		truck_number, trailer_number, license_plate, notes, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.LoadID, b.DriverID, b.BrokerID, b.Status, b.RateCents,
		b.TruckNumber, b.TrailerNumber, b.LicensePlate, b.Notes, b.PaymentStatus,
		b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetForActor returns a booking visible to the given actor: either the
// booking's driver or the owning broker of its load. Ownership is resolved
// by joining through loads rather than trusting the denormalized broker_id.
func (r *BookingRepo) GetForActor(ctx context.Context, bookingID, actorID uint64) (*Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 JOIN loads l ON l.id = b.load_id
		 WHERE b.id = ? AND (b.driver_id = ? OR l.broker_id = ?)`,
		bookingID, actorID, actorID))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForBrokerTx returns a booking within the caller's transaction only when
// the caller owns the booking's load, verified via join. Missing bookings
// and foreign ownership both surface as ErrBookingNotFound so an
// unauthorized broker cannot learn whether the booking exists.
func (r *BookingRepo) GetForBrokerTx(ctx context.Context, tx *sql.Tx, bookingID, brokerID uint64) (*Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 JOIN loads l ON l.id = b.load_id
		 WHERE b.id = ? AND l.broker_id = ?`, bookingID, brokerID))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetForDriverTx returns a booking within the caller's transaction only when
// it belongs to the given driver. A foreign booking is ErrBookingNotFound.
func (r *BookingRepo) GetForDriverTx(ctx context.Context, tx *sql.Tx, bookingID, driverID uint64) (*Booking, error) {
	b, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b
		 WHERE b.id = ? AND b.driver_id = ?`, bookingID, driverID))
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// HasLiveForLoadTx reports whether any booking against the load is in a
// non-terminal-rejected status. Together with loads.status this forms the
// one-active-booking-per-load resource.
func (r *BookingRepo) HasLiveForLoadTx(ctx context.Context, tx *sql.Tx, loadID uint64) (bool, error) {
	var one uint64
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE load_id = ? AND status NOT IN (?, ?) LIMIT 1`,
		loadID, BookingStatusRejected, BookingStatusCancelled).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HasLiveForDriverTx reports whether the driver already has a live booking
// against the load.
func (r *BookingRepo) HasLiveForDriverTx(ctx context.Context, tx *sql.Tx, loadID, driverID uint64) (bool, error) {
	var one uint64
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM bookings WHERE load_id = ? AND driver_id = ? AND status NOT IN (?, ?) LIMIT 1`,
		loadID, driverID, BookingStatusRejected, BookingStatusCancelled).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ConfirmTx swaps PENDING -> CONFIRMED, storing the rate confirmation number
// and timestamp. It reports whether a row changed; false means the booking
// was no longer PENDING at commit time.
func (r *BookingRepo) ConfirmTx(ctx context.Context, tx *sql.Tx, id uint64, rateConfirmation, now string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, rate_confirmation = ?, confirmed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		BookingStatusConfirmed, rateConfirmation, now, now, id, BookingStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RejectTx swaps PENDING -> REJECTED with the broker's reason. The load is
// deliberately left BOOKED; re-listing is a separate broker decision.
func (r *BookingRepo) RejectTx(ctx context.Context, tx *sql.Tx, id uint64, reason, now string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, reject_reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		BookingStatusRejected, reason, now, id, BookingStatusPending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkPickedUpTx swaps CONFIRMED -> IN_TRANSIT, storing the BOL number and
// pickup signature.
func (r *BookingRepo) MarkPickedUpTx(ctx context.Context, tx *sql.Tx, id uint64, bolNumber, signature, now string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, bol_number = ?, pickup_signature = ?, picked_up_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		BookingStatusInTransit, bolNumber, signature, now, now, id, BookingStatusConfirmed)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkDeliveredTx swaps IN_TRANSIT -> DELIVERED, storing the delivery
// signature and proof-of-delivery reference.
func (r *BookingRepo) MarkDeliveredTx(ctx context.Context, tx *sql.Tx, id uint64, signature, podReference, now string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, delivery_signature = ?, pod_reference = ?, delivered_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		BookingStatusDelivered, signature, podReference, now, now, id, BookingStatusInTransit)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompleteTx swaps DELIVERED -> COMPLETED and settles payment: the payment
// status flips to PAID with the provided payment date and invoice reference.
func (r *BookingRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, paymentDate, invoiceRef, now string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_status = ?, payment_date = ?, invoice_ref = ?, completed_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		BookingStatusCompleted, PaymentStatusPaid, paymentDate, invoiceRef, now, now, id, BookingStatusDelivered)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListByDriver returns all bookings made by the given driver, newest first.
func (r *BookingRepo) ListByDriver(ctx context.Context, driverID uint64) ([]Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.driver_id = ? ORDER BY b.created_at DESC, b.id DESC`, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ListByLoadForBroker returns all bookings against a load after verifying the
// caller owns it. A missing or foreign load is ErrLoadNotFound.
func (r *BookingRepo) ListByLoadForBroker(ctx context.Context, loadID, brokerID uint64) ([]Booking, error) {
	var actual uint64
	err := r.db.QueryRowContext(ctx, `SELECT broker_id FROM loads WHERE id = ?`, loadID).Scan(&actual)
	if err == sql.ErrNoRows {
		return nil, ErrLoadNotFound
	}
	if err != nil {
		return nil, err
	}
	if actual != brokerID {
		return nil, ErrLoadNotFound
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.load_id = ? ORDER BY b.created_at DESC, b.id DESC`, loadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
