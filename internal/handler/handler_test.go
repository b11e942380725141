package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/freight-load-board/internal/audit"
	"github.com/iliyamo/freight-load-board/internal/handler"
	"github.com/iliyamo/freight-load-board/internal/repository"
	"github.com/iliyamo/freight-load-board/internal/service"
	"github.com/iliyamo/freight-load-board/internal/testkit"
)

// newApp wires real repositories and the marketplace behind an Echo instance.
// asActor substitutes for JWTAuth: it injects the given actor id the same way
// the middleware stores the token subject.
func newApp(t *testing.T) *echo.Echo {
	t.Helper()
	db := testkit.OpenDB(t)
	loads := repository.NewLoadRepo(db)
	bookings := repository.NewBookingRepo(db)
	market := service.NewMarketplace(db, loads, bookings, audit.NewMemorySink())

	broker := handler.NewBrokerHandler(loads, bookings, market)
	driver := handler.NewDriverHandler(bookings, market)
	public := handler.NewPublicHandler(loads)

	asActor := func(id uint64) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				c.Set("user_id", id)
				return next(c)
			}
		}
	}

	e := echo.New()
	e.GET("/v1/loads", public.SearchLoads)
	e.GET("/v1/loads/:id", public.GetLoad)
	e.POST("/v1/loads", broker.CreateLoad, asActor(1))
	e.PUT("/v1/my-loads/:id", broker.UpdateLoad, asActor(1))
	e.GET("/v1/my-loads", broker.ListMyLoads, asActor(1))
	e.GET("/v1/my-loads/:id/bookings", broker.ListLoadBookings, asActor(1))
	e.POST("/v1/bookings/:id/confirm", broker.ConfirmBooking, asActor(1))
	e.POST("/v1/loads/:id/book", driver.CreateBooking, asActor(7))
	e.POST("/v1/loads/:id/book2", driver.CreateBooking, asActor(8))
	e.GET("/v1/bookings/:id", driver.GetBooking, asActor(7))
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

const validLoadBody = `{
	"origin_city": "Chicago", "origin_state": "IL",
	"dest_city": "Dallas", "dest_state": "TX",
	"pickup_date": "2024-01-10 08:00:00",
	"delivery_date": "2024-01-12 17:00:00",
	"equipment_type": "Dry Van",
	"weight_lbs": 42000, "length_ft": 53,
	"rate_cents": 100000, "distance_miles": 800
}`

func decodeItem(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Item map[string]interface{} `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v: %s", err, rec.Body.String())
	}
	return envelope.Item
}

func TestPostSearchAndBookFlow(t *testing.T) {
	e := newApp(t)

	rec := do(t, e, http.MethodPost, "/v1/loads", validLoadBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create load: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	item := decodeItem(t, rec)
	if item["status"] != "AVAILABLE" {
		t.Fatalf("expected AVAILABLE, got %v", item["status"])
	}
	if item["rate_per_mile_cents"].(float64) != 125 {
		t.Fatalf("expected rate_per_mile_cents 125, got %v", item["rate_per_mile_cents"])
	}

	rec = do(t, e, http.MethodGet, "/v1/loads?origin_state=IL&equipment_type=Dry+Van", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Fatalf("expected one search hit: %s", rec.Body.String())
	}

	rec = do(t, e, http.MethodPost, "/v1/loads/1/book", `{"truck_number": "TRK-100"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("book: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	booking := decodeItem(t, rec)
	if booking["status"] != "PENDING" {
		t.Fatalf("expected PENDING booking, got %v", booking["status"])
	}

	// The loser of the race sees a deliberately generic conflict message.
	rec = do(t, e, http.MethodPost, "/v1/loads/1/book2", `{"truck_number": "TRK-200"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second booking: expected 409, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no longer available") {
		t.Fatalf("expected generic unavailable message: %s", rec.Body.String())
	}

	// A booked load drops out of the public board.
	rec = do(t, e, http.MethodGet, "/v1/loads/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("public get of BOOKED load: expected 404, got %d", rec.Code)
	}

	// But the broker still sees the booking against it.
	rec = do(t, e, http.MethodGet, "/v1/my-loads/1/bookings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list bookings: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"truck_number":"TRK-100"`) {
		t.Fatalf("expected driver's booking in list: %s", rec.Body.String())
	}
}

func TestCreateLoadValidation(t *testing.T) {
	e := newApp(t)

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"unknown field", strings.Replace(validLoadBody, `"weight_lbs"`, `"weight_pounds"`, 1)},
		{"missing rate", strings.Replace(validLoadBody, `"rate_cents": 100000,`, "", 1)},
		{"delivery before pickup", strings.Replace(validLoadBody, `"delivery_date": "2024-01-12 17:00:00"`, `"delivery_date": "2024-01-09 17:00:00"`, 1)},
		{"bad date", strings.Replace(validLoadBody, `"2024-01-10 08:00:00"`, `"next tuesday"`, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, e, http.MethodPost, "/v1/loads", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestUpdateLoadGuards(t *testing.T) {
	e := newApp(t)
	if rec := do(t, e, http.MethodPost, "/v1/loads", validLoadBody); rec.Code != http.StatusCreated {
		t.Fatalf("create load: %d", rec.Code)
	}

	updated := strings.Replace(validLoadBody, `"rate_cents": 100000`, `"rate_cents": 120000`, 1)
	rec := do(t, e, http.MethodPut, "/v1/my-loads/1", updated)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if rec := do(t, e, http.MethodPost, "/v1/loads/1/book", `{"truck_number": "TRK-100"}`); rec.Code != http.StatusCreated {
		t.Fatalf("book: %d", rec.Code)
	}

	// Once booked the load can no longer be edited.
	rec = do(t, e, http.MethodPut, "/v1/my-loads/1", updated)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update after booking: expected 404, got %d", rec.Code)
	}
}

func TestSearchRejectsMalformedParams(t *testing.T) {
	e := newApp(t)
	for _, path := range []string{
		"/v1/loads?min_rate_cents=cheap",
		"/v1/loads?page=0",
		"/v1/loads?sort=sideways",
	} {
		rec := do(t, e, http.MethodGet, path, "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}
