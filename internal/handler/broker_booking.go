package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type confirmBookingRequest struct {
	RateConfirmation string `json:"rate_confirmation"`
}

type rejectBookingRequest struct {
	Reason string `json:"reason"`
}

type completeBookingRequest struct {
	PaymentDate string `json:"payment_date"`
	InvoiceRef  string `json:"invoice_ref"`
}

// ConfirmBooking handles POST /v1/bookings/:id/confirm. Only the broker who
// owns the underlying load may confirm, and only while the booking is PENDING.
func (h *BrokerHandler) ConfirmBooking(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body confirmBookingRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.RateConfirmation == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rate_confirmation is required"})
	}
	booking, err := h.Marketplace.ConfirmBooking(c.Request().Context(), brokerID, bookingID, body.RateConfirmation)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}

// RejectBooking handles POST /v1/bookings/:id/reject. The load stays BOOKED;
// the broker relists it explicitly when ready to take new offers.
func (h *BrokerHandler) RejectBooking(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body rejectBookingRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	booking, err := h.Marketplace.RejectBooking(c.Request().Context(), brokerID, bookingID, body.Reason)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}

// CompleteBooking handles POST /v1/bookings/:id/complete, the settlement step.
// payment_date is a calendar date (YYYY-MM-DD) recorded as given.
func (h *BrokerHandler) CompleteBooking(c echo.Context) error {
	brokerID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body completeBookingRequest
	if err := bindStrict(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentDate == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_date is required"})
	}
	if _, err := time.Parse("2006-01-02", body.PaymentDate); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_date must be YYYY-MM-DD"})
	}
	booking, err := h.Marketplace.CompleteBooking(c.Request().Context(), brokerID, bookingID, body.PaymentDate, body.InvoiceRef)
	if err != nil {
		return writeStoreError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": booking})
}
