package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/repository"
)

// PublicHandler serves the unauthenticated load board: searching available
// freight and viewing a single posting.
type PublicHandler struct {
	LoadRepo *repository.LoadRepo
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(loadRepo *repository.LoadRepo) *PublicHandler {
	if loadRepo == nil {
		panic("nil LoadRepo passed to NewPublicHandler")
	}
	return &PublicHandler{LoadRepo: loadRepo}
}

// SearchLoads handles GET /v1/loads. All filters come from query parameters;
// unknown parameters are ignored, malformed numeric ones are a 400.
func (h *PublicHandler) SearchLoads(c echo.Context) error {
	q := repository.LoadSearchQuery{
		OriginCity:    c.QueryParam("origin_city"),
		OriginState:   c.QueryParam("origin_state"),
		DestCity:      c.QueryParam("dest_city"),
		DestState:     c.QueryParam("dest_state"),
		EquipmentType: c.QueryParam("equipment_type"),
		Sort:          c.QueryParam("sort"),
	}
	type numParam struct {
		name string
		dst  *uint32
	}
	for _, p := range []numParam{
		{"min_rate_cents", &q.MinRateCents},
		{"max_rate_cents", &q.MaxRateCents},
		{"max_weight_lbs", &q.MaxWeightLbs},
	} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + p.name})
		}
		*p.dst = uint32(v)
	}
	if raw := c.QueryParam("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
		}
		q.Page = v
	}
	if raw := c.QueryParam("page_size"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page_size"})
		}
		q.PageSize = v
	}
	switch q.Sort {
	case "", "newest", "rate", "pickup":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid sort"})
	}

	loads, total, err := h.LoadRepo.SearchAvailable(c.Request().Context(), q)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items": loads,
		"total": total,
	})
}

// GetLoad handles GET /v1/loads/:id. Postings that are no longer AVAILABLE
// are not exposed here; callers see a plain 404 for them.
func (h *PublicHandler) GetLoad(c echo.Context) error {
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	load, err := h.LoadRepo.GetByID(c.Request().Context(), loadID)
	if err != nil {
		return writeStoreError(c, err)
	}
	if load.Status != repository.LoadStatusAvailable {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "load not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": load})
}
