// Package repository contains data access logic for the load board. This file
// defines the Load entity and repository methods for posted loads. A Load is a
// freight-hauling job posted by a broker; its status only ever changes through
// the compare-and-swap methods below, never through a generic status setter.
package repository

import (
	"context"
	"database/sql"
	"time"
)

// TimeLayout is the DB timestamp format used throughout the schema.
// All timestamps are stored as UTC strings in this layout so the same
// queries run unchanged under MySQL and the sqlite test driver.
const TimeLayout = "2006-01-02 15:04:05"

// Load statuses. AVAILABLE loads appear in search; COMPLETED, CANCELLED and
// EXPIRED are terminal. Transitions move strictly forward except the
// BOOKED -> AVAILABLE relist branch, which is a deliberate broker action.
const (
	LoadStatusAvailable = "AVAILABLE"
	LoadStatusBooked    = "BOOKED"
	LoadStatusInTransit = "IN_TRANSIT"
	LoadStatusDelivered = "DELIVERED"
	LoadStatusCompleted = "COMPLETED"
	LoadStatusCancelled = "CANCELLED"
	LoadStatusExpired   = "EXPIRED"
)

// Load represents a posted freight load.
// NOTE: Time strings are stored in DB format "2006-01-02 15:04:05" (UTC).
type Load struct {
	ID               uint64  `json:"id"`
	BrokerID         uint64  `json:"broker_id"`
	OriginCity       string  `json:"origin_city"`
	OriginState      string  `json:"origin_state"`
	DestCity         string  `json:"dest_city"`
	DestState        string  `json:"dest_state"`
	PickupDate       string  `json:"pickup_date"`
	DeliveryDate     string  `json:"delivery_date"`
	EquipmentType    string  `json:"equipment_type"`
	WeightLbs        uint32  `json:"weight_lbs"`
	LengthFt         uint32  `json:"length_ft"`
	RateCents        uint32  `json:"rate_cents"`
	DistanceMiles    *uint32 `json:"distance_miles,omitempty"`
	RatePerMileCents *uint32 `json:"rate_per_mile_cents,omitempty"`
	Notes            string  `json:"notes"`
	Status           string  `json:"status"`
	ExpiresAt        *string `json:"expires_at,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

// LoadRepo manages persistence for loads.
type LoadRepo struct {
	db *sql.DB
}

// NewLoadRepo returns a new LoadRepo bound to the given database.
func NewLoadRepo(db *sql.DB) *LoadRepo { return &LoadRepo{db: db} }

// DB exposes the underlying sql.DB. It allows callers to begin
// transactions spanning the load and booking repositories.
func (r *LoadRepo) DB() *sql.DB { return r.db }

const loadColumns = `id, broker_id, origin_city, origin_state, dest_city, dest_state,
	pickup_date, delivery_date, equipment_type, weight_lbs, length_ft, rate_cents,
	distance_miles, rate_per_mile_cents, notes, status, expires_at, created_at, updated_at`

func scanLoad(row interface {
	Scan(dest ...interface{}) error
}) (*Load, error) {
	var l Load
	var distance, perMile sql.NullInt64
	var expires sql.NullString
	err := row.Scan(
		&l.ID, &l.BrokerID, &l.OriginCity, &l.OriginState, &l.DestCity, &l.DestState,
		&l.PickupDate, &l.DeliveryDate, &l.EquipmentType, &l.WeightLbs, &l.LengthFt, &l.RateCents,
		&distance, &perMile, &l.Notes, &l.Status, &expires, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if distance.Valid {
		d := uint32(distance.Int64)
		l.DistanceMiles = &d
	}
	if perMile.Valid {
		p := uint32(perMile.Int64)
		l.RatePerMileCents = &p
	}
	if expires.Valid {
		e := expires.String
		l.ExpiresAt = &e
	}
	return &l, nil
}

// Create inserts a new load in AVAILABLE status. The generated ID and the
// creation timestamps are populated on the given Load. When both a rate and
// a distance are present, the derived rate-per-mile is computed here once at
// creation time and never recomputed.
func (r *LoadRepo) Create(ctx context.Context, l *Load) error {
	now := nowStamp()
	l.Status = LoadStatusAvailable
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.DistanceMiles != nil && *l.DistanceMiles > 0 {
		perMile := l.RateCents / *l.DistanceMiles
		l.RatePerMileCents = &perMile
	}
	const q = `INSERT INTO loads (broker_id, origin_city, origin_state, dest_city, dest_state,
		pickup_date, delivery_date, equipment_type, weight_lbs, length_ft, rate_cents,
		distance_miles, rate_per_mile_cents, notes, status, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		l.BrokerID, l.OriginCity, l.OriginState, l.DestCity, l.DestState,
		l.PickupDate, l.DeliveryDate, l.EquipmentType, l.WeightLbs, l.LengthFt, l.RateCents,
		nullUint(l.DistanceMiles), nullUint(l.RatePerMileCents), l.Notes, l.Status, nullStr(l.ExpiresAt),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// GetByID returns a load by its primary key. ErrLoadNotFound is returned
// when no such row exists.
func (r *LoadRepo) GetByID(ctx context.Context, id uint64) (*Load, error) {
	l, err := scanLoad(r.db.QueryRowContext(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrLoadNotFound
	}
	return l, err
}

// GetByIDForBroker returns a load only when it is owned by the given broker.
// Missing rows and foreign ownership are both reported as ErrLoadNotFound.
func (r *LoadRepo) GetByIDForBroker(ctx context.Context, id, brokerID uint64) (*Load, error) {
	l, err := scanLoad(r.db.QueryRowContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE id = ? AND broker_id = ?`, id, brokerID))
	if err == sql.ErrNoRows {
		return nil, ErrLoadNotFound
	}
	return l, err
}

// GetTx returns a load within the provided transaction. ErrLoadNotFound is
// returned when no such row exists.
func (r *LoadRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*Load, error) {
	l, err := scanLoad(tx.QueryRowContext(ctx, `SELECT `+loadColumns+` FROM loads WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrLoadNotFound
	}
	return l, err
}

// ListByBroker returns all loads posted by the given broker, newest first.
func (r *LoadRepo) ListByBroker(ctx context.Context, brokerID uint64) ([]Load, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE broker_id = ? ORDER BY created_at DESC, id DESC`, brokerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	loads := make([]Load, 0)
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, err
		}
		loads = append(loads, *l)
	}
	return loads, rows.Err()
}

// ClaimTx flips an AVAILABLE, unexpired load to BOOKED within the caller's
// transaction. This is the compare-and-swap that resolves concurrent claim
// attempts: the status predicate is evaluated by the database at update time,
// so under concurrent claims exactly one caller sees a row change. When the
// swap matches no row, the load is re-read to distinguish a lost race
// (ErrLoadNotAvailable) from a missing load (ErrLoadNotFound).
func (r *LoadRepo) ClaimTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	now := nowStamp()
	res, err := tx.ExecContext(ctx,
		`UPDATE loads SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND (expires_at IS NULL OR expires_at > ?)`,
		LoadStatusBooked, now, id, LoadStatusAvailable, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists uint64
	err = tx.QueryRowContext(ctx, `SELECT id FROM loads WHERE id = ?`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrLoadNotFound
	}
	if err != nil {
		return err
	}
	return ErrLoadNotAvailable
}

// UpdateStatusTx performs a guarded status transition within the caller's
// transaction. It reports whether a row actually changed; a false result
// means the load was no longer in the expected predecessor status at commit
// time and the caller must roll back.
func (r *LoadRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE loads SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, nowStamp(), id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CancelTx cancels a broker's own load when it is still AVAILABLE or BOOKED.
// It reports whether a row changed. The caller is responsible for first
// verifying that no live booking remains against the load.
func (r *LoadRepo) CancelTx(ctx context.Context, tx *sql.Tx, id, brokerID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE loads SET status = ?, updated_at = ?
		 WHERE id = ? AND broker_id = ? AND status IN (?, ?)`,
		LoadStatusCancelled, nowStamp(), id, brokerID, LoadStatusAvailable, LoadStatusBooked)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RelistTx returns a BOOKED load owned by the broker to AVAILABLE. Used after
// a booking was rejected; re-listing never happens implicitly. It reports
// whether a row changed.
func (r *LoadRepo) RelistTx(ctx context.Context, tx *sql.Tx, id, brokerID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE loads SET status = ?, updated_at = ?
		 WHERE id = ? AND broker_id = ? AND status = ?`,
		LoadStatusAvailable, nowStamp(), id, brokerID, LoadStatusBooked)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ExpireAvailable demotes every AVAILABLE load whose expires_at has passed to
// EXPIRED and returns the number of rows changed. The sweep only touches
// still-AVAILABLE rows through the same status-guarded update discipline as
// claims, so it is idempotent and safe to run concurrently with bookings.
func (r *LoadRepo) ExpireAvailable(ctx context.Context) (int64, error) {
	now := nowStamp()
	res, err := r.db.ExecContext(ctx,
		`UPDATE loads SET status = ?, updated_at = ?
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		LoadStatusExpired, now, LoadStatusAvailable, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateDetails patches the descriptive attributes of an AVAILABLE load owned
// by the broker. Status is deliberately not settable here. ErrLoadNotFound is
// returned when the load is missing, foreign, or no longer AVAILABLE.
func (r *LoadRepo) UpdateDetails(ctx context.Context, l *Load, brokerID uint64) error {
	if l.DistanceMiles != nil && *l.DistanceMiles > 0 {
		perMile := l.RateCents / *l.DistanceMiles
		l.RatePerMileCents = &perMile
	} else {
		l.RatePerMileCents = nil
	}
	l.UpdatedAt = nowStamp()
	const q = `UPDATE loads SET origin_city = ?, origin_state = ?, dest_city = ?, dest_state = ?,
		pickup_date = ?, delivery_date = ?, equipment_type = ?, weight_lbs = ?, length_ft = ?,
		rate_cents = ?, distance_miles = ?, rate_per_mile_cents = ?, notes = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND broker_id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		l.OriginCity, l.OriginState, l.DestCity, l.DestState,
		l.PickupDate, l.DeliveryDate, l.EquipmentType, l.WeightLbs, l.LengthFt,
		l.RateCents, nullUint(l.DistanceMiles), nullUint(l.RatePerMileCents), l.Notes, nullStr(l.ExpiresAt), l.UpdatedAt,
		l.ID, brokerID, LoadStatusAvailable)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLoadNotFound
	}
	return nil
}

func nowStamp() string { return time.Now().UTC().Format(TimeLayout) }

func nullUint(v *uint32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullStr(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
