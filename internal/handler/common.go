package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/availability"
	"github.com/iliyamo/studio-booking/internal/inventory"
)

// intQueryParam parses an integer query parameter.  A missing parameter
// is an error; callers that allow omission check QueryParam first.
func intQueryParam(c echo.Context, name string) (int, error) {
	return strconv.Atoi(c.QueryParam(name))
}

// validationResponse translates the engine's aggregated validation
// failures into an HTTP response: 409 when a slot conflict is among the
// errors, 400 otherwise.  Infrastructure errors return false so the
// caller can fall through to its own 500 handling.
func validationResponse(c echo.Context, err error) (bool, error) {
	var verr *availability.ValidationErrors
	if errors.As(err, &verr) {
		status := http.StatusBadRequest
		if verr.Conflict != nil {
			status = http.StatusConflict
		}
		body := echo.Map{"error": "validation failed", "details": verr.Errors}
		if verr.Conflict != nil {
			body["conflict"] = echo.Map{
				"starts_at": verr.Conflict.StartsAt,
				"ends_at":   verr.Conflict.EndsAt,
			}
		}
		return true, c.JSON(status, body)
	}
	var berr *inventory.BatchError
	if errors.As(err, &berr) {
		return true, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": berr.Messages})
	}
	return false, nil
}
