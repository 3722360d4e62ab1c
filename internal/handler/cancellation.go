package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/service"
)

// CancellationHandler exposes the cancellation flow: a dry-run refund
// quote and the cancellation itself. Both guests (own reservations)
// and managers (any reservation at their venue) reach these endpoints;
// ownership is enforced in the service under the row lock.
type CancellationHandler struct {
    Cancellations *service.CancellationService
}

func NewCancellationHandler(cancellations *service.CancellationService) *CancellationHandler {
    return &CancellationHandler{Cancellations: cancellations}
}

// QuoteRefund handles GET /v1/reservations/:id/refund-quote.
func (h *CancellationHandler) QuoteRefund(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    quote, err := h.Cancellations.Quote(c.Request().Context(), reservationID, userID, getRole(c))
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusOK, "refund quote", echo.Map{
        "window_type":         quote.Window,
        "refund_amount_cents": quote.AmountCents,
        "refund_percentage":   quote.Percentage,
        "no_refund_reason":    quote.NoRefundReason,
    })
}

type cancelReq struct {
    Reason string `json:"reason"`
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *CancellationHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    reservationID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    var req cancelReq
    _ = c.Bind(&req) // reason is optional

    result, err := h.Cancellations.Cancel(c.Request().Context(), service.CancelInput{
        ReservationID: reservationID,
        RequestedByID: userID,
        RequestedBy:   getRole(c),
        Reason:        req.Reason,
    })
    if err != nil {
        return fail(c, err)
    }
    return ok(c, http.StatusOK, "reservation cancelled", result)
}
