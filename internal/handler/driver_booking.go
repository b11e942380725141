package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/repository"
	"github.com/iliyamo/freight-load-board/internal/service"
)

// DriverHandler groups the endpoints a carrier driver uses to claim loads
// and report progress on them.
type DriverHandler struct {
	BookingRepo *repository.BookingRepo
	Marketplace *service.Marketplace
}

// NewDriverHandler constructs a DriverHandler. All dependencies must be non-nil.
func NewDriverHandler(bookingRepo *repository.BookingRepo, marketplace *service.Marketplace) *DriverHandler {
	if bookingRepo == nil || marketplace == nil {
		panic("nil dependency passed to NewDriverHandler")
	}
	return &DriverHandler{BookingRepo: bookingRepo, Marketplace: marketplace}
}

type createBookingRequest struct {
	RateCents     uint32 `json:"rate_cents"`
	TruckNumber   string `json:"truck_number"`
	TrailerNumber string `json:"trailer_number"`
	LicensePlate  string `json:"license_plate"`
	Notes         string `json:"notes"`
}

type pickupRequest struct {
	BOLNumber string `json:"bol_number"`
	Signature string `json:"signature"`
}

type deliveryRequest struct {
	Signature    string `json:"signature"`
	PODReference string `json:"pod_reference"`
}

// CreateBooking handles POST /v1/loads/:id/book. When two drivers race for
// the same load, exactly one gets 201; the loser receives 409 with a message
// saying the load is no longer available.
func (h *DriverHandler) CreateBooking(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	loadID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid load id"})
	}
	var body createBookingRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TruckNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "truck_number is required"})
	}
	booking, err := h.Marketplace.CreateBooking(c.Request().Context(), driverID, service.CreateBookingInput{
		LoadID:        loadID,
		RateCents:     body.RateCents,
		TruckNumber:   body.TruckNumber,
		TrailerNumber: body.TrailerNumber,
		LicensePlate:  body.LicensePlate,
		Notes:         body.Notes,
	})
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": booking})
}

// MarkPickedUp handles POST /v1/bookings/:id/pickup. The booking must be
// CONFIRMED; the load moves to IN_TRANSIT in the same transaction.
func (h *DriverHandler) MarkPickedUp(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body pickupRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.BOLNumber == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "bol_number is required"})
	}
	booking, err := h.Marketplace.MarkPickedUp(c.Request().Context(), driverID, bookingID, body.BOLNumber, body.Signature)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}

// MarkDelivered handles POST /v1/bookings/:id/delivery.
func (h *DriverHandler) MarkDelivered(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body deliveryRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	booking, err := h.Marketplace.MarkDelivered(c.Request().Context(), driverID, bookingID, body.Signature, body.PODReference)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}

// ListMyBookings handles GET /v1/my-bookings, newest first.
func (h *DriverHandler) ListMyBookings(c echo.Context) error {
	driverID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.BookingRepo.ListByDriver(c.Request().Context(), driverID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": bookings})
}

// GetBooking handles GET /v1/bookings/:id for either side of the deal: the
// driver who holds the booking or the broker who owns the load.
func (h *DriverHandler) GetBooking(c echo.Context) error {
	actorID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, err := h.BookingRepo.GetForActor(c.Request().Context(), bookingID, actorID)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}
