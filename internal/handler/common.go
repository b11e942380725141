package handler // handler defines http handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/repository"
)

// getUserID extracts the actor id from echo.Context and converts it to uint64.
// JWTAuth stores the raw "sub" claim, whose concrete type depends on the JSON
// decoder, so several representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the named path parameter as a positive uint64.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// bindStrict decodes the JSON request body into v, rejecting unknown fields
// so malformed payloads fail loudly at the boundary instead of being coerced.
func bindStrict(c echo.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseStamp accepts either RFC3339 or the DB layout and returns the value
// normalized to the DB layout in UTC.
func parseStamp(s string) (string, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Format(repository.TimeLayout), true
	}
	if t, err := time.Parse(repository.TimeLayout, s); err == nil {
		return t.UTC().Format(repository.TimeLayout), true
	}
	return "", false
}

// writeStoreError maps repository sentinel errors onto HTTP responses. The
// driver losing a claim race deliberately sees the same generic message as
// any other unavailable load.
func writeStoreError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrLoadNotFound), errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrLoadNotAvailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "load is no longer available"})
	case errors.Is(err, repository.ErrDuplicateBooking):
		return c.JSON(http.StatusConflict, echo.Map{"error": "an active booking for this load already exists"})
	case errors.Is(err, repository.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid state for this transition"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting records exist"})
	case errors.Is(err, repository.ErrStoreUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, retry later"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
