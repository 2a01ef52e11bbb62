package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory/internal/repository"
)

// InventoryHandler serves the read-only views: unit statuses per layout
// for admin/reporting and the ledger view per holder.  These routes are
// cacheable; the response cache middleware fronts them.
type InventoryHandler struct {
	Units  *repository.UnitRepo
	Ledger *repository.HoldRepo
}

// NewInventoryHandler constructs an InventoryHandler.  Both repos must
// be non-nil.
func NewInventoryHandler(units *repository.UnitRepo, ledger *repository.HoldRepo) *InventoryHandler {
	if units == nil || ledger == nil {
		panic("nil repository passed to NewInventoryHandler")
	}
	return &InventoryHandler{Units: units, Ledger: ledger}
}

// ListUnits handles GET /v1/layouts/:id/units.  It returns every unit
// in the layout with its current status and version.  An empty layout
// yields an empty items array, not an error.
func (h *InventoryHandler) ListUnits(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid layout id"})
	}
	units, err := h.Units.ListByLayout(c.Request().Context(), layoutID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load units"})
	}
	items := make([]echo.Map, 0, len(units))
	for _, u := range units {
		items = append(items, echo.Map{
			"unit_uid":       u.UnitUID,
			"status":         string(u.Status),
			"version":        u.Version,
			"last_change_at": u.LastChangeAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"layout_id": layoutID,
		"items":     items,
	})
}

// ListHolds handles GET /v1/holds?holder_ref=.  It returns the live
// ledger rows for one holder so a client can recover its hold set after
// a reconnect.
func (h *InventoryHandler) ListHolds(c echo.Context) error {
	holderRef := c.QueryParam("holder_ref")
	if holderRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_ref is required"})
	}
	holds, err := h.Ledger.ListByHolder(c.Request().Context(), holderRef)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load holds"})
	}
	items := make([]echo.Map, 0, len(holds))
	for _, hold := range holds {
		items = append(items, echo.Map{
			"layout_id":  hold.LayoutID,
			"unit_uid":   hold.UnitUID,
			"expires_at": hold.ExpiresAt.Format(time.RFC3339),
			"created_at": hold.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"holder_ref": holderRef,
		"items":      items,
	})
}
