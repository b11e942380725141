package repository

import (
	"context"
	"strings"
)

// LoadSearchQuery defines filters, sort and pagination for the public
// load search. Zero values mean "no filter".
type LoadSearchQuery struct {
	OriginCity    string
	OriginState   string
	DestCity      string
	DestState     string
	EquipmentType string
	MinRateCents  uint32
	MaxRateCents  uint32
	MaxWeightLbs  uint32
	Sort          string // newest (default), rate, pickup
	Page          int
	PageSize      int
}

// SearchAvailable returns loads that are AVAILABLE and unexpired at scan
// time, together with the total match count for pagination. A returned load
// may legitimately become stale before a subsequent claim; the claim's own
// compare-and-swap is what resolves that, not this query.
func (r *LoadRepo) SearchAvailable(ctx context.Context, q LoadSearchQuery) ([]Load, int64, error) {
	where := []string{"status = ?", "(expires_at IS NULL OR expires_at > ?)"}
	args := []interface{}{LoadStatusAvailable, nowStamp()}

	if q.OriginCity != "" {
		where = append(where, "LOWER(origin_city) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.OriginCity)+"%")
	}
	if q.OriginState != "" {
		where = append(where, "UPPER(origin_state) = ?")
		args = append(args, strings.ToUpper(q.OriginState))
	}
	if q.DestCity != "" {
		where = append(where, "LOWER(dest_city) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.DestCity)+"%")
	}
	if q.DestState != "" {
		where = append(where, "UPPER(dest_state) = ?")
		args = append(args, strings.ToUpper(q.DestState))
	}
	if q.EquipmentType != "" {
		where = append(where, "LOWER(equipment_type) = ?")
		args = append(args, strings.ToLower(q.EquipmentType))
	}
	if q.MinRateCents > 0 {
		where = append(where, "rate_cents >= ?")
		args = append(args, q.MinRateCents)
	}
	if q.MaxRateCents > 0 {
		where = append(where, "rate_cents <= ?")
		args = append(args, q.MaxRateCents)
	}
	if q.MaxWeightLbs > 0 {
		where = append(where, "weight_lbs <= ?")
		args = append(args, q.MaxWeightLbs)
	}

	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM loads WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	order := "created_at DESC, id DESC"
	switch strings.ToLower(q.Sort) {
	case "rate":
		order = "rate_cents DESC, id DESC"
	case "pickup":
		order = "pickup_date ASC, id ASC"
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 || size > 100 {
		size = 20
	}
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+loadColumns+` FROM loads WHERE `+cond+` ORDER BY `+order+` LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	loads := make([]Load, 0)
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, 0, err
		}
		loads = append(loads, *l)
	}
	return loads, total, rows.Err()
}
