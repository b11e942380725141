package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/repository"
	"github.com/iliyamo/freight-load-board/internal/service"
)

// BrokerHandler groups the dependencies for broker endpoints: posting and
// maintaining loads, and settling bookings. All methods assume JWT
// authentication and role validation have already been performed by
// middleware.
type BrokerHandler struct {
	LoadRepo    *repository.LoadRepo
	BookingRepo *repository.BookingRepo
	Marketplace *service.Marketplace
}

// NewBrokerHandler constructs a BrokerHandler. All dependencies must be non-nil.
func NewBrokerHandler(loadRepo *repository.LoadRepo, bookingRepo *repository.BookingRepo, marketplace *service.Marketplace) *BrokerHandler {
	if loadRepo == nil || bookingRepo == nil || marketplace == nil {
		panic("nil dependency passed to NewBrokerHandler")
	}
	return &BrokerHandler{LoadRepo: loadRepo, BookingRepo: bookingRepo, Marketplace: marketplace}
}

// loadPayload is the typed creation/update body for a load. Required and
// optional fields are explicit; unknown fields are rejected by bindStrict.
type loadPayload struct {
	OriginCity    string  `json:"origin_city"`
	OriginState   string  `json:"origin_state"`
	DestCity      string  `json:"dest_city"`
	DestState     string  `json:"dest_state"`
	PickupDate    string  `json:"pickup_date"`
	DeliveryDate  string  `json:"delivery_date"`
	EquipmentType string  `json:"equipment_type"`
	WeightLbs     uint32  `json:"weight_lbs"`
	LengthFt      uint32  `json:"length_ft"`
	RateCents     uint32  `json:"rate_cents"`
	DistanceMiles *uint32 `json:"distance_miles"`
	Notes         string  `json:"notes"`
	ExpiresAt     *string `json:"expires_at"`
}

// validate checks required fields and normalizes timestamps. It returns a
// human-readable message for the first problem found.
func (p *loadPayload) validate() (string, bool) {
	switch {
	case p.OriginCity == "" || p.OriginState == "":
		return "origin_city and origin_state are required", false
	case p.DestCity == "" || p.DestState == "":
		return "dest_city and dest_state are required", false
	case p.PickupDate == "" || p.DeliveryDate == "":
		return "pickup_date and delivery_date are required", false
	case p.EquipmentType == "":
		return "equipment_type is required", false
	case p.WeightLbs == 0:
		return "weight_lbs is required", false
	case p.RateCents == 0:
		return "rate_cents is required", false
	}
	pickup, ok := parseStamp(p.PickupDate)
	if !ok {
		return "invalid pickup_date", false
	}
	delivery, ok := parseStamp(p.DeliveryDate)
	if !ok {
		return "invalid delivery_date", false
	}
	if delivery < pickup {
		return "delivery_date must not precede pickup_date", false
	}
	p.PickupDate = pickup
	p.DeliveryDate = delivery
	if p.ExpiresAt != nil {
		exp, ok := parseStamp(*p.ExpiresAt)
		if !ok {
			return "invalid expires_at", false
		}
		if exp <= time.Now().UTC().Format(repository.TimeLayout) {
			return "expires_at must be in the future", false
		}
		p.ExpiresAt = &exp
	}
	return "", true
}

func (p *loadPayload) apply(l *repository.Load) {
	l.OriginCity = p.OriginCity
	l.OriginState = p.OriginState
	l.DestCity = p.DestCity
	l.DestState = p.DestState
	l.PickupDate = p.PickupDate
	l.DeliveryDate = p.DeliveryDate
	l.EquipmentType = p.EquipmentType
	l.WeightLbs = p.WeightLbs
	l.LengthFt = p.LengthFt
	l.RateCents = p.RateCents
	l.DistanceMiles = p.DistanceMiles
	l.Notes = p.Notes
	l.ExpiresAt = p.ExpiresAt
}

// CreateLoad handles POST /v1/loads. The load is created in AVAILABLE status
// and owned by the calling broker. Returns 201 with the stored load.
func (h *BrokerHandler) CreateLoad(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body loadPayload
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg, ok := body.validate(); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	load := &repository.Load{BrokerID: brokerID}
	body.apply(load)
	if err := h.LoadRepo.Create(c.Request().Context(), load); err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": load})
}

// UpdateLoad handles PUT /v1/my-loads/:id. Only descriptive attributes of a
// still-AVAILABLE load can change; there is intentionally no way to set the
// status field here.
func (h *BrokerHandler) UpdateLoad(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	var body loadPayload
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg, ok := body.validate(); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	load := &repository.Load{ID: loadID, BrokerID: brokerID}
	body.apply(load)
	if err := h.LoadRepo.UpdateDetails(c.Request().Context(), load, brokerID); err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": load})
}

// ListMyLoads handles GET /v1/my-loads. It returns every load posted by the
// calling broker, newest first.
func (h *BrokerHandler) ListMyLoads(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loads, err := h.LoadRepo.ListByBroker(c.Request().Context(), brokerID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": loads})
}

// GetMyLoad handles GET /v1/my-loads/:id, the owner view of a single load.
func (h *BrokerHandler) GetMyLoad(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	load, err := h.LoadRepo.GetByIDForBroker(c.Request().Context(), loadID, brokerID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": load})
}

// ListLoadBookings handles GET /v1/my-loads/:id/bookings: every booking ever
// made against one of the broker's loads, including rejected ones.
func (h *BrokerHandler) ListLoadBookings(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	bookings, err := h.BookingRepo.ListByLoadForBroker(c.Request().Context(), loadID, brokerID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": bookings})
}

// CancelLoad handles POST /v1/my-loads/:id/cancel.
func (h *BrokerHandler) CancelLoad(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	if err := h.Marketplace.CancelLoad(c.Request().Context(), brokerID, loadID); err != nil {
		return writeStoreError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RelistLoad handles POST /v1/my-loads/:id/relist. It returns a BOOKED load
// whose booking was rejected to AVAILABLE so it shows up in search again.
func (h *BrokerHandler) RelistLoad(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	if err := h.Marketplace.RelistLoad(c.Request().Context(), brokerID, loadID); err != nil {
		return writeStoreError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
