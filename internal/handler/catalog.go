package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/calendar"
	"github.com/iliyamo/studio-booking/internal/inventory"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// CatalogHandler serves the public read-only catalog: studio locations,
// add-on services and the rental inventory.  Inventory listings can be
// annotated with the quantity free during a concrete time slot so slot
// pickers can grey out exhausted items.
type CatalogHandler struct {
	Locations *repository.LocationRepo
	AddOns    *repository.AddOnRepo
	Inventory *repository.InventoryRepo
	Pool      *inventory.Pool
}

func NewCatalogHandler(locations *repository.LocationRepo, addOns *repository.AddOnRepo, inv *repository.InventoryRepo, pool *inventory.Pool) *CatalogHandler {
	return &CatalogHandler{Locations: locations, AddOns: addOns, Inventory: inv, Pool: pool}
}

type locationResp struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
}

// ListLocations handles GET /v1/locations.
func (h *CatalogHandler) ListLocations(c echo.Context) error {
	locs, err := h.Locations.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]locationResp, 0, len(locs))
	for _, l := range locs {
		out = append(out, locationResp{ID: l.ID, Name: l.Name, Description: l.Description, HourlyRate: l.HourlyRate})
	}
	return c.JSON(http.StatusOK, echo.Map{"locations": out})
}

type addOnResp struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ListAddOns handles GET /v1/addons.
func (h *CatalogHandler) ListAddOns(c echo.Context) error {
	addOns, err := h.AddOns.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]addOnResp, 0, len(addOns))
	for _, a := range addOns {
		out = append(out, addOnResp{ID: a.ID, Name: a.Name, Price: a.Price})
	}
	return c.JSON(http.StatusOK, echo.Map{"addons": out})
}

type inventoryItemResp struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Size      string          `json:"size,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Available *int            `json:"available,omitempty"` // only when a slot was given
}

// ListInventory handles GET /v1/inventory.  Optional query parameters:
// kind filters to "clothing" or "prop"; date + start_time +
// duration_minutes annotate each item with the quantity still free
// during that slot.
func (h *CatalogHandler) ListInventory(c echo.Context) error {
	ctx := c.Request().Context()

	kind := model.ItemKind(c.QueryParam("kind"))
	if kind != "" && kind != model.ItemKindClothing && kind != model.ItemKindProp {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be clothing or prop"})
	}

	items, err := h.Inventory.ListActive(ctx, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	out := make([]inventoryItemResp, 0, len(items))
	for _, it := range items {
		out = append(out, inventoryItemResp{
			ID: it.ID, Kind: string(it.Kind), Name: it.Name, Size: it.Size,
			Price: it.Price, Quantity: it.Quantity,
		})
	}

	// Annotate slot availability only when the caller gave a full slot.
	if ds := c.QueryParam("date"); ds != "" {
		date, err := calendar.ParseDate(ds)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date, expected YYYY-MM-DD"})
		}
		start, err := calendar.ParseClock(c.QueryParam("start_time"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_time, expected HH:MM"})
		}
		duration, err := intQueryParam(c, "duration_minutes")
		if err != nil || duration <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_minutes must be a positive integer"})
		}
		for i := range out {
			free, err := h.Pool.AvailableQuantity(ctx, out[i].ID, date, start, duration, "")
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
			}
			n := free
			out[i].Available = &n
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
