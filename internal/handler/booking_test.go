package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func bookingTestHandler(t *testing.T) (*BookingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h := NewBookingHandler(
		repository.NewSettingsRepo(db),
		repository.NewLocationRepo(db),
		repository.NewAddOnRepo(db),
		repository.NewInventoryRepo(db),
		repository.NewBookingRepo(db),
		repository.NewPaymentRepo(db),
		repository.NewUnitOfWork(db),
		nil, nil, nil,
	)
	return h, mock
}

func bookingHTTP(t *testing.T, h echo.HandlerFunc, method, target, body, paramName, paramValue string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramName != "" {
		c.SetParamNames(paramName)
		c.SetParamValues(paramValue)
	}
	require.NoError(t, h(c))
	return rec
}

func TestBookingCreateRejectsMissingFields(t *testing.T) {
	h, _ := bookingTestHandler(t)

	rec := bookingHTTP(t, h.Create, http.MethodPost, "/v1/bookings",
		`{"location_id":"loc-1","date":"2026-09-10","start_time":"10:00","duration_minutes":60}`, "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "first_name")
}

func TestBookingCreateRejectsBadDate(t *testing.T) {
	h, _ := bookingTestHandler(t)

	rec := bookingHTTP(t, h.Create, http.MethodPost, "/v1/bookings",
		`{"location_id":"loc-1","first_name":"Ann","last_name":"Lee","phone_number":"+380501112233","date":"10.09.2026","start_time":"10:00","duration_minutes":60}`, "", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookingGetNotFound(t *testing.T) {
	h, mock := bookingTestHandler(t)
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \?`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	rec := bookingHTTP(t, h.Get, http.MethodGet, "/v1/bookings/missing", "", "id", "missing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingResponseFormatsClockTimes(t *testing.T) {
	b := &model.Booking{
		ID:              "bk-1",
		LocationID:      "loc-1",
		Date:            time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		StartMinute:     10 * 60,
		DurationMinutes: 90,
		TotalAmount:     decimal.RequireFromString("600.00"),
	}

	resp := bookingResponse(b)

	assert.Equal(t, "2026-09-10", resp.Date)
	assert.Equal(t, "10:00", resp.StartTime)
	assert.Equal(t, "11:30", resp.EndTime)
}
