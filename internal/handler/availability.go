package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/repository"
    "github.com/dinebook/table-reservation/internal/service"
)

// AvailabilityHandler serves the public, unauthenticated browse
// endpoints. Responses on these routes are cached by the response
// cache middleware; the inline hold sweep inside the service keeps the
// underlying data honest.
type AvailabilityHandler struct {
    Bookings    *service.BookingService
    Restaurants *repository.RestaurantRepo
}

func NewAvailabilityHandler(bookings *service.BookingService, restaurants *repository.RestaurantRepo) *AvailabilityHandler {
    return &AvailabilityHandler{Bookings: bookings, Restaurants: restaurants}
}

// ListRestaurants handles GET /v1/restaurants.
func (h *AvailabilityHandler) ListRestaurants(c echo.Context) error {
    restaurants, err := h.Restaurants.ListActive(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    out := make([]echo.Map, 0, len(restaurants))
    for _, r := range restaurants {
        out = append(out, echo.Map{"id": r.ID, "name": r.Name})
    }
    return c.JSON(http.StatusOK, echo.Map{"restaurants": out})
}

// ListMealServices handles GET /v1/restaurants/:id/meal-services.
func (h *AvailabilityHandler) ListMealServices(c echo.Context) error {
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    services, err := h.Restaurants.ListActiveMealServices(c.Request().Context(), restaurantID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"meal_services": services})
}

// Availability handles GET /v1/restaurants/:id/availability?date=YYYY-MM-DD.
// It returns the buffet capacity ledger and the per-table slot picture
// for the date, after sweeping expired holds.
func (h *AvailabilityHandler) Availability(c echo.Context) error {
    restaurantID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    date, err := parseDate(c.QueryParam("date"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date"})
    }
    result, err := h.Bookings.Availability(c.Request().Context(), restaurantID, date)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, result)
}
