package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/freight-load-board/internal/repository"
	"github.com/iliyamo/freight-load-board/internal/testkit"
)

func seedLoad(t *testing.T, repo *repository.LoadRepo, mutate func(*repository.Load)) *repository.Load {
	t.Helper()
	l := &repository.Load{
		BrokerID:      1,
		OriginCity:    "Chicago",
		OriginState:   "IL",
		DestCity:      "Dallas",
		DestState:     "TX",
		PickupDate:    "2024-01-10 08:00:00",
		DeliveryDate:  "2024-01-12 17:00:00",
		EquipmentType: "Dry Van",
		WeightLbs:     42000,
		LengthFt:      53,
		RateCents:     100000,
	}
	if mutate != nil {
		mutate(l)
	}
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("create load: %v", err)
	}
	return l
}

func beginTx(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	return tx
}

func TestCreateSetsDefaultsAndRatePerMile(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)

	miles := uint32(800)
	l := seedLoad(t, repo, func(l *repository.Load) { l.DistanceMiles = &miles })

	if l.ID == 0 {
		t.Fatal("expected generated id")
	}
	if l.Status != repository.LoadStatusAvailable {
		t.Fatalf("expected AVAILABLE, got %s", l.Status)
	}
	if l.RatePerMileCents == nil || *l.RatePerMileCents != 125 {
		t.Fatalf("expected rate per mile 125, got %v", l.RatePerMileCents)
	}

	got, err := repo.GetByID(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.RatePerMileCents == nil || *got.RatePerMileCents != 125 {
		t.Fatalf("stored rate per mile mismatch: %v", got.RatePerMileCents)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
}

func TestClaimTxFlipsExactlyOnce(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()
	l := seedLoad(t, repo, nil)

	tx := beginTx(t, db)
	if err := repo.ClaimTx(ctx, tx, l.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := repo.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != repository.LoadStatusBooked {
		t.Fatalf("expected BOOKED, got %s", got.Status)
	}

	tx = beginTx(t, db)
	defer tx.Rollback()
	if err := repo.ClaimTx(ctx, tx, l.ID); !errors.Is(err, repository.ErrLoadNotAvailable) {
		t.Fatalf("expected ErrLoadNotAvailable, got %v", err)
	}
}

func TestClaimTxMissingLoad(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)

	tx := beginTx(t, db)
	defer tx.Rollback()
	if err := repo.ClaimTx(context.Background(), tx, 999); !errors.Is(err, repository.ErrLoadNotFound) {
		t.Fatalf("expected ErrLoadNotFound, got %v", err)
	}
}

func TestClaimTxExpiredLoad(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	past := time.Now().UTC().Add(-time.Hour).Format(repository.TimeLayout)
	l := seedLoad(t, repo, func(l *repository.Load) { l.ExpiresAt = &past })

	tx := beginTx(t, db)
	defer tx.Rollback()
	if err := repo.ClaimTx(context.Background(), tx, l.ID); !errors.Is(err, repository.ErrLoadNotAvailable) {
		t.Fatalf("expected ErrLoadNotAvailable for expired load, got %v", err)
	}
}

func TestExpireAvailableIsIdempotent(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Minute).Format(repository.TimeLayout)
	future := time.Now().UTC().Add(time.Hour).Format(repository.TimeLayout)
	expired := seedLoad(t, repo, func(l *repository.Load) { l.ExpiresAt = &past })
	fresh := seedLoad(t, repo, func(l *repository.Load) { l.ExpiresAt = &future })
	seedLoad(t, repo, nil) // no expiry at all

	n, err := repo.ExpireAvailable(ctx)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}

	got, _ := repo.GetByID(ctx, expired.ID)
	if got.Status != repository.LoadStatusExpired {
		t.Fatalf("expected EXPIRED, got %s", got.Status)
	}
	got, _ = repo.GetByID(ctx, fresh.ID)
	if got.Status != repository.LoadStatusAvailable {
		t.Fatalf("fresh load should stay AVAILABLE, got %s", got.Status)
	}

	n, err = repo.ExpireAvailable(ctx)
	if err != nil {
		t.Fatalf("second expire: %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep should touch nothing, got %d", n)
	}
}

func TestCancelTxGuards(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()
	l := seedLoad(t, repo, nil)

	// Foreign broker cannot cancel.
	tx := beginTx(t, db)
	ok, err := repo.CancelTx(ctx, tx, l.ID, 42)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if ok {
		t.Fatal("foreign broker must not cancel")
	}
	tx.Rollback()

	tx = beginTx(t, db)
	ok, err = repo.CancelTx(ctx, tx, l.ID, l.BrokerID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !ok {
		t.Fatal("owner cancel should succeed")
	}
	tx.Commit()

	// A terminal load cannot be cancelled again.
	tx = beginTx(t, db)
	ok, _ = repo.CancelTx(ctx, tx, l.ID, l.BrokerID)
	if ok {
		t.Fatal("cancelling a CANCELLED load must not match")
	}
	tx.Rollback()
}

func TestRelistTxOnlyFromBooked(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()
	l := seedLoad(t, repo, nil)

	tx := beginTx(t, db)
	ok, err := repo.RelistTx(ctx, tx, l.ID, l.BrokerID)
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if ok {
		t.Fatal("relisting an AVAILABLE load must not match")
	}
	tx.Rollback()

	tx = beginTx(t, db)
	if err := repo.ClaimTx(ctx, tx, l.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	tx.Commit()

	tx = beginTx(t, db)
	ok, err = repo.RelistTx(ctx, tx, l.ID, l.BrokerID)
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if !ok {
		t.Fatal("relisting a BOOKED load should succeed")
	}
	tx.Commit()

	got, _ := repo.GetByID(ctx, l.ID)
	if got.Status != repository.LoadStatusAvailable {
		t.Fatalf("expected AVAILABLE after relist, got %s", got.Status)
	}
}

func TestUpdateDetailsOnlyWhileAvailable(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()
	l := seedLoad(t, repo, nil)

	l.RateCents = 120000
	l.Notes = "team drivers preferred"
	if err := repo.UpdateDetails(ctx, l, l.BrokerID); err != nil {
		t.Fatalf("update details: %v", err)
	}
	got, _ := repo.GetByID(ctx, l.ID)
	if got.RateCents != 120000 || got.Notes != "team drivers preferred" {
		t.Fatalf("update not applied: %+v", got)
	}

	// Foreign broker gets not found, not forbidden.
	if err := repo.UpdateDetails(ctx, l, 42); !errors.Is(err, repository.ErrLoadNotFound) {
		t.Fatalf("expected ErrLoadNotFound for foreign broker, got %v", err)
	}

	tx := beginTx(t, db)
	if err := repo.ClaimTx(ctx, tx, l.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	tx.Commit()

	if err := repo.UpdateDetails(ctx, l, l.BrokerID); !errors.Is(err, repository.ErrLoadNotFound) {
		t.Fatalf("expected ErrLoadNotFound for BOOKED load, got %v", err)
	}
}

func TestGetByIDForBrokerHidesForeignLoads(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()
	l := seedLoad(t, repo, nil)

	if _, err := repo.GetByIDForBroker(ctx, l.ID, l.BrokerID); err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if _, err := repo.GetByIDForBroker(ctx, l.ID, 42); !errors.Is(err, repository.ErrLoadNotFound) {
		t.Fatalf("expected ErrLoadNotFound for foreign broker, got %v", err)
	}
}
