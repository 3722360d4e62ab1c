package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/repository"
    "github.com/dinebook/table-reservation/internal/service"
)

// AdminHandler groups the manager-only venue operations: populating the
// capacity ledger, disabling days, pushing slots into administrative
// statuses, and reading a day's reservations. Role middleware ensures
// only MANAGER tokens get here; per-restaurant ownership is checked in
// the service layer.
type AdminHandler struct {
    Bookings     *service.BookingService
    Reservations *repository.ReservationRepo
}

func NewAdminHandler(bookings *service.BookingService, reservations *repository.ReservationRepo) *AdminHandler {
    return &AdminHandler{Bookings: bookings, Reservations: reservations}
}

type populateCapacityReq struct {
    FromDate   string `json:"from_date"` // YYYY-MM-DD
    Days       int    `json:"days"`
    TotalSeats uint32 `json:"total_seats"`
}

// PopulateCapacity handles POST /v1/admin/restaurants/:id/capacity.
func (h *AdminHandler) PopulateCapacity(c echo.Context) error {
    managerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req populateCapacityReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.Days <= 0 || req.Days > 366 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "days must be between 1 and 366"})
    }
    if req.TotalSeats == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "total_seats must be positive"})
    }
    from, err := parseDate(req.FromDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from_date"})
    }
    created, err := h.Bookings.PopulateCapacity(c.Request().Context(), restaurantID, managerID, from, req.Days, req.TotalSeats)
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusCreated, "capacity populated", echo.Map{"created": created})
}

// DisableDay handles POST /v1/admin/restaurants/:id/capacity/disable.
// A day with booked seats cannot be disabled; the response says so
// instead of pretending it was.
func (h *AdminHandler) DisableDay(c echo.Context) error {
    managerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req struct {
        MealServiceID uint64 `json:"meal_service_id"`
        Date          string `json:"date"`
    }
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    date, err := parseDate(req.Date)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
    }
    disabled, err := h.Bookings.DisableDay(c.Request().Context(), restaurantID, managerID, req.MealServiceID, date)
    if err != nil {
        return fail(c, err)
    }
    if !disabled {
        return c.JSON(http.StatusConflict, envelope{Success: false, Code: "DAY_HAS_BOOKINGS", Message: "day has booked seats or is already disabled"})
    }
    return ok(c, http.StatusOK, "day disabled", nil)
}

type slotStatusReq struct {
    TableID     uint64 `json:"table_id"`
    ServiceDate string `json:"service_date"`
    StartTime   string `json:"start_time"`         // RFC3339
    EndTime     string `json:"end_time,omitempty"` // RFC3339, optional
    Status      string `json:"status"`             // AVAILABLE | BLOCKED | MAINTENANCE
}

// SetSlotStatus handles POST /v1/admin/restaurants/:id/slots/status.
func (h *AdminHandler) SetSlotStatus(c echo.Context) error {
    managerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req slotStatusReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    status := model.SlotStatus(req.Status)
    if status != model.SlotAvailable && status != model.SlotBlocked && status != model.SlotMaintenance {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be AVAILABLE, BLOCKED or MAINTENANCE"})
    }
    date, err := parseDate(req.ServiceDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service_date"})
    }
    start, err := time.Parse(time.RFC3339, req.StartTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_time"})
    }
    var end *time.Time
    if req.EndTime != "" {
        t, err := time.Parse(time.RFC3339, req.EndTime)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_time"})
        }
        end = &t
    }
    slot, err := h.Bookings.SetSlotStatus(c.Request().Context(), managerID, restaurantID, req.TableID, date, start, end, status)
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusOK, "slot status updated", echo.Map{
        "slot_id": slot.ID,
        "status":  slot.Status,
    })
}

// ListReservations handles GET /v1/admin/restaurants/:id/reservations?date=YYYY-MM-DD.
func (h *AdminHandler) ListReservations(c echo.Context) error {
    managerID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    date, err := parseDate(c.QueryParam("date"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
    }
    details, err := h.Reservations.ListByRestaurantForManager(c.Request().Context(), restaurantID, managerID, date)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}
