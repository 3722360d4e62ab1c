package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/repository"
    "github.com/dinebook/table-reservation/internal/service"
)

// BookingHandler exposes the guest booking flow: buffet bookings, table
// holds, confirmation, hold release and reservation listing. JWT and
// role middleware run before every method; handlers only translate
// between HTTP and the service layer.
type BookingHandler struct {
    Bookings     *service.BookingService
    Reservations *repository.ReservationRepo
}

func NewBookingHandler(bookings *service.BookingService, reservations *repository.ReservationRepo) *BookingHandler {
    return &BookingHandler{Bookings: bookings, Reservations: reservations}
}

type bookBuffetReq struct {
    MealServiceID      uint64 `json:"meal_service_id"`
    ServiceDate        string `json:"service_date"`     // YYYY-MM-DD
    ReservationTime    string `json:"reservation_time"` // RFC3339
    PartySize          uint32 `json:"party_size"`
    TotalAmountCents   int64  `json:"total_amount_cents"`
    AdvanceAmountCents int64  `json:"advance_amount_cents"`
}

// BookBuffet handles POST /v1/restaurants/:id/buffet-bookings.
func (h *BookingHandler) BookBuffet(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req bookBuffetReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    date, err := parseDate(req.ServiceDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service_date"})
    }
    at, err := time.Parse(time.RFC3339, req.ReservationTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation_time"})
    }

    res, err := h.Bookings.BookBuffet(c.Request().Context(), service.BookBuffetInput{
        UserID:             userID,
        RestaurantID:       restaurantID,
        MealServiceID:      req.MealServiceID,
        ServiceDate:        date,
        ReservationTime:    at,
        PartySize:          req.PartySize,
        TotalAmountCents:   req.TotalAmountCents,
        AdvanceAmountCents: req.AdvanceAmountCents,
    })
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusCreated, "reservation confirmed", echo.Map{
        "reservation_id": res.ID,
        "status":         res.Status,
    })
}

type holdTablesReq struct {
    TableIDs    []uint64 `json:"table_ids"`
    ServiceDate string   `json:"service_date"`
    StartTime   string   `json:"start_time"`         // RFC3339
    EndTime     string   `json:"end_time,omitempty"` // RFC3339, optional
    PartySize   uint32   `json:"party_size"`
}

// HoldTables handles POST /v1/restaurants/:id/holds. Managers may pull
// BLOCKED slots into a hold; guests may not.
func (h *BookingHandler) HoldTables(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req holdTablesReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if len(req.TableIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "table_ids is required"})
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

    result, err := h.Bookings.HoldTables(c.Request().Context(), service.HoldTablesInput{
        UserID:       userID,
        RestaurantID: restaurantID,
        TableIDs:     req.TableIDs,
        ServiceDate:  date,
        Start:        start,
        End:          end,
        PartySize:    req.PartySize,
        AllowBlocked: getRole(c) == model.RoleManager,
    })
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusCreated, "tables held", result)
}

type confirmTablesReq struct {
    ReservationType    string  `json:"reservation_type"` // TABLE_ONLY | BUFFET_AND_TABLE
    MealServiceID      *uint64 `json:"meal_service_id,omitempty"`
    ServiceDate        string  `json:"service_date"`
    ReservationTime    string  `json:"reservation_time"`
    PartySize          uint32  `json:"party_size"`
    TotalAmountCents   int64   `json:"total_amount_cents"`
    AdvanceAmountCents int64   `json:"advance_amount_cents"`
}

// ConfirmTables handles POST /v1/restaurants/:id/confirm.
func (h *BookingHandler) ConfirmTables(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req confirmTablesReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    rtype := model.ReservationType(req.ReservationType)
    if rtype != model.ReservationTableOnly && rtype != model.ReservationBuffetAndTable {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation_type"})
    }
    date, err := parseDate(req.ServiceDate)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid service_date"})
    }
    at, err := time.Parse(time.RFC3339, req.ReservationTime)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation_time"})
    }

    res, err := h.Bookings.ConfirmTables(c.Request().Context(), service.ConfirmTablesInput{
        UserID:             userID,
        RestaurantID:       restaurantID,
        Type:               rtype,
        MealServiceID:      req.MealServiceID,
        ServiceDate:        date,
        ReservationTime:    at,
        PartySize:          req.PartySize,
        TotalAmountCents:   req.TotalAmountCents,
        AdvanceAmountCents: req.AdvanceAmountCents,
    })
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusCreated, "reservation confirmed", echo.Map{
        "reservation_id": res.ID,
        "status":         res.Status,
    })
}

// ReleaseHolds handles DELETE /v1/restaurants/:id/holds?date=YYYY-MM-DD.
func (h *BookingHandler) ReleaseHolds(c echo.Context) error {
    userID, err := getUserID(c)
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
    released, err := h.Bookings.ReleaseHolds(c.Request().Context(), userID, restaurantID, date)
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusOK, "holds released", echo.Map{"released": released})
}

// ListMine handles GET /v1/reservations.
func (h *BookingHandler) ListMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    details, err := h.Reservations.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": details})
}

// GetMine handles GET /v1/reservations/:id.
func (h *BookingHandler) GetMine(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    detail, err := h.Reservations.GetDetailForUser(c.Request().Context(), reservationID, userID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, detail)
}
