package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/freight-load-board/internal/repository"
	"github.com/iliyamo/freight-load-board/internal/testkit"
)

func TestSearchAvailableFilters(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()

	seedLoad(t, repo, func(l *repository.Load) {
		l.OriginCity, l.OriginState = "Chicago", "IL"
		l.EquipmentType = "Dry Van"
		l.RateCents = 100000
	})
	seedLoad(t, repo, func(l *repository.Load) {
		l.OriginCity, l.OriginState = "Atlanta", "GA"
		l.EquipmentType = "Reefer"
		l.RateCents = 250000
	})
	seedLoad(t, repo, func(l *repository.Load) {
		l.OriginCity, l.OriginState = "Chicago", "IL"
		l.EquipmentType = "Flatbed"
		l.RateCents = 180000
		l.WeightLbs = 48000
	})
	// Booked loads never show up in search.
	booked := seedLoad(t, repo, nil)
	tx := beginTx(t, db)
	if err := repo.ClaimTx(ctx, tx, booked.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	tx.Commit()
	// Neither do expired ones.
	past := time.Now().UTC().Add(-time.Hour).Format(repository.TimeLayout)
	seedLoad(t, repo, func(l *repository.Load) { l.ExpiresAt = &past })

	cases := []struct {
		name  string
		query repository.LoadSearchQuery
		want  int64
	}{
		{"no filters", repository.LoadSearchQuery{}, 3},
		{"origin state", repository.LoadSearchQuery{OriginState: "il"}, 2},
		{"origin city partial", repository.LoadSearchQuery{OriginCity: "chic"}, 2},
		{"equipment", repository.LoadSearchQuery{EquipmentType: "reefer"}, 1},
		{"min rate", repository.LoadSearchQuery{MinRateCents: 150000}, 2},
		{"rate band", repository.LoadSearchQuery{MinRateCents: 150000, MaxRateCents: 200000}, 1},
		{"max weight", repository.LoadSearchQuery{MaxWeightLbs: 45000}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loads, total, err := repo.SearchAvailable(ctx, tc.query)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			if total != tc.want {
				t.Fatalf("expected total %d, got %d", tc.want, total)
			}
			if int64(len(loads)) != tc.want {
				t.Fatalf("expected %d rows, got %d", tc.want, len(loads))
			}
			for _, l := range loads {
				if l.Status != repository.LoadStatusAvailable {
					t.Fatalf("non-available load leaked into search: %+v", l)
				}
			}
		})
	}
}

func TestSearchAvailableSortAndPagination(t *testing.T) {
	db := testkit.OpenDB(t)
	repo := repository.NewLoadRepo(db)
	ctx := context.Background()

	rates := []uint32{100000, 300000, 200000}
	for _, r := range rates {
		rate := r
		seedLoad(t, repo, func(l *repository.Load) { l.RateCents = rate })
	}

	loads, total, err := repo.SearchAvailable(ctx, repository.LoadSearchQuery{Sort: "rate"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 total, got %d", total)
	}
	for i := 1; i < len(loads); i++ {
		if loads[i].RateCents > loads[i-1].RateCents {
			t.Fatalf("rate sort not descending: %d before %d", loads[i-1].RateCents, loads[i].RateCents)
		}
	}

	page1, total, err := repo.SearchAvailable(ctx, repository.LoadSearchQuery{Sort: "rate", Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 3 || len(page1) != 2 {
		t.Fatalf("page 1: total=%d rows=%d", total, len(page1))
	}
	page2, _, err := repo.SearchAvailable(ctx, repository.LoadSearchQuery{Sort: "rate", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 1 {
		t.Fatalf("page 2: expected 1 row, got %d", len(page2))
	}
	if page2[0].RateCents != 100000 {
		t.Fatalf("expected cheapest load on last page, got %d", page2[0].RateCents)
	}
}
