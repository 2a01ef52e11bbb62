package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-inventory/internal/model"
	"github.com/iliyamo/ticket-inventory/internal/service"
)

// maxHoldUnits caps the number of units a single hold request may name.
const maxHoldUnits = 10

// CheckoutHandler exposes the hold lifecycle over HTTP: place, confirm
// and release.  All state transitions go through the hold service; the
// handler only translates bodies and maps service errors onto status
// codes.  JWT authentication and rate limiting run as middleware before
// these methods.
type CheckoutHandler struct {
	Holds *service.HoldService
}

// NewCheckoutHandler constructs a CheckoutHandler.  The service must be
// non-nil.
func NewCheckoutHandler(holds *service.HoldService) *CheckoutHandler {
	if holds == nil {
		panic("nil service passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Holds: holds}
}

type heldUnitBody struct {
	UnitUID string `json:"unit_uid"`
	Version uint64 `json:"version"`
}

func layoutIDParam(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid layout id")
	}
	return id, nil
}

// PlaceHold handles POST /v1/layouts/:id/holds.  The body carries a
// "unit_uids" array and an optional "holder_ref"; when the reference is
// omitted the service generates one.  On success it returns 201 with
// the hold set including per-unit versions, which the client must echo
// back on confirm.  If any unit is unavailable the whole request fails
// with 409 and the list of offending units.
func (h *CheckoutHandler) PlaceHold(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid layout id"})
	}
	var body struct {
		UnitUIDs  []string `json:"unit_uids"`
		HolderRef string   `json:"holder_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.UnitUIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_uids is required"})
	}
	if len(body.UnitUIDs) > maxHoldUnits {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "too many units in one hold"})
	}

	set, err := h.Holds.PlaceHold(c.Request().Context(), layoutID, body.UnitUIDs, body.HolderRef, 0)
	if err != nil {
		var conflict *service.HoldConflictError
		switch {
		case errors.As(err, &conflict):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":       "some units are unavailable",
				"unavailable": conflict.Unavailable,
			})
		case errors.Is(err, service.ErrEmptyHoldSet):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid unit UIDs provided"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to place hold"})
		}
	}

	units := make([]heldUnitBody, 0, len(set.Units))
	for _, u := range set.Units {
		units = append(units, heldUnitBody{UnitUID: u.UnitUID, Version: u.Version})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"layout_id":  set.LayoutID,
		"holder_ref": set.HolderRef,
		"expires_at": set.ExpiresAt.Format(time.RFC3339),
		"units":      units,
	})
}

// ReleaseHold handles DELETE /v1/layouts/:id/holds.  The body names the
// units to return to the pool plus the holder reference; only units the
// reference actually owns in the ledger are touched.  Releasing is
// idempotent: units that already expired, were swept or belong to
// someone else are reported as already_free rather than failing the
// call.
func (h *CheckoutHandler) ReleaseHold(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid layout id"})
	}
	var body struct {
		UnitUIDs  []string `json:"unit_uids"`
		HolderRef string   `json:"holder_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.UnitUIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_uids is required"})
	}
	if body.HolderRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "holder_ref is required"})
	}

	set := model.HoldSet{LayoutID: layoutID, HolderRef: body.HolderRef}
	for _, uid := range body.UnitUIDs {
		set.Units = append(set.Units, model.HeldUnit{UnitUID: uid})
	}
	report, err := h.Holds.ReleaseHold(c.Request().Context(), set)
	if err != nil {
		if errors.Is(err, service.ErrEmptyHoldSet) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "no valid unit UIDs provided"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to release hold"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"released":     report.Released,
		"already_free": report.AlreadyFree,
	})
}

// ConfirmSale handles POST /v1/layouts/:id/confirm.  The body replays
// the hold set returned by PlaceHold, version for version, plus the
// ticket-type quantities being sold and optionally the order whose
// pending tickets become valid.  A version mismatch on any unit means
// the hold expired or was re-held in the meantime; the whole request
// fails with 409 and the client restarts checkout.  Quota exhaustion
// maps to 422.
func (h *CheckoutHandler) ConfirmSale(c echo.Context) error {
	layoutID, err := layoutIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid layout id"})
	}
	var body struct {
		HolderRef string            `json:"holder_ref"`
		Units     []heldUnitBody    `json:"units"`
		Items     []model.QuotaItem `json:"items"`
		OrderID   uint64            `json:"order_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Units) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "units is required"})
	}

	in := service.ConfirmInput{
		Set:     model.HoldSet{LayoutID: layoutID, HolderRef: body.HolderRef},
		Items:   body.Items,
		OrderID: body.OrderID,
	}
	for _, u := range body.Units {
		in.Set.Units = append(in.Set.Units, model.HeldUnit{UnitUID: u.UnitUID, Version: u.Version})
	}

	if err := h.Holds.ConfirmSale(c.Request().Context(), in); err != nil {
		var stale *service.StaleHoldError
		switch {
		case errors.As(err, &stale):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":    "hold is stale",
				"unit_uid": stale.UnitUID,
			})
		case errors.Is(err, service.ErrQuotaExceeded):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "ticket type quota exceeded"})
		case errors.Is(err, service.ErrEmptyHoldSet):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "units is required"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm sale"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"confirmed": len(body.Units),
	})
}
