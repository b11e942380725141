// Package testkit provides shared test fixtures: an in-memory SQL database
// with the marketplace schema already applied. The repositories restrict
// themselves to portable SQL, so tests run against sqlite while production
// runs against MySQL.
package testkit

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE loads (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	broker_id           INTEGER NOT NULL,
	origin_city         TEXT    NOT NULL,
	origin_state        TEXT    NOT NULL,
	dest_city           TEXT    NOT NULL,
	dest_state          TEXT    NOT NULL,
	pickup_date         TEXT    NOT NULL,
	delivery_date       TEXT    NOT NULL,
	equipment_type      TEXT    NOT NULL,
	weight_lbs          INTEGER NOT NULL,
	length_ft           INTEGER NOT NULL DEFAULT 0,
	rate_cents          INTEGER NOT NULL,
	distance_miles      INTEGER,
	rate_per_mile_cents INTEGER,
	notes               TEXT    NOT NULL DEFAULT '',
	status              TEXT    NOT NULL,
	expires_at          TEXT,
	created_at          TEXT    NOT NULL,
	updated_at          TEXT    NOT NULL
);

CREATE TABLE bookings (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	load_id            INTEGER NOT NULL REFERENCES loads(id),
	driver_id          INTEGER NOT NULL,
	broker_id          INTEGER NOT NULL,
	status             TEXT    NOT NULL,
	rate_cents         INTEGER NOT NULL,
	truck_number       TEXT    NOT NULL,
	trailer_number     TEXT    NOT NULL DEFAULT '',
	license_plate      TEXT    NOT NULL DEFAULT '',
	notes              TEXT    NOT NULL DEFAULT '',
	rate_confirmation  TEXT,
	bol_number         TEXT,
	pickup_signature   TEXT,
	delivery_signature TEXT,
	pod_reference      TEXT,
	invoice_ref        TEXT,
	reject_reason      TEXT,
	payment_status     TEXT    NOT NULL,
	payment_date       TEXT,
	confirmed_at       TEXT,
	picked_up_at       TEXT,
	delivered_at       TEXT,
	completed_at       TEXT,
	created_at         TEXT    NOT NULL,
	updated_at         TEXT    NOT NULL
);
`

// OpenDB returns an in-memory database with the schema applied. The pool is
// pinned to a single connection so concurrent transactions serialize the way
// a row-locking server would, and so the :memory: database is not silently
// duplicated per connection. The database is closed when the test finishes.
func OpenDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
