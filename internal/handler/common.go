package handler

import (
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/dinebook/table-reservation/internal/repository"
    "github.com/dinebook/table-reservation/internal/service"
)

// envelope is the uniform response body of the booking and cancellation
// endpoints. Code carries a stable machine code clients branch on;
// Message is human wording and may change. Data is present on success
// only.
type envelope struct {
    Success bool        `json:"success"`
    Code    string      `json:"code"`
    Message string      `json:"message"`
    Data    interface{} `json:"data,omitempty"`
}

func ok(c echo.Context, status int, message string, data interface{}) error {
    return c.JSON(status, envelope{Success: true, Code: "OK", Message: message, Data: data})
}

// fail translates a service error into the envelope plus the matching
// HTTP status. Unknown errors become an opaque 500 so internals never
// leak into responses.
func fail(c echo.Context, err error) error {
    code := service.CodeOf(err)
    status := http.StatusConflict
    switch {
    case errors.Is(err, repository.ErrNotFound):
        status = http.StatusNotFound
    case errors.Is(err, repository.ErrForbidden):
        status = http.StatusForbidden
    case errors.Is(err, service.ErrPartySizeInvalid):
        status = http.StatusBadRequest
    case code == "INTERNAL":
        status = http.StatusInternalServerError
        return c.JSON(status, envelope{Success: false, Code: code, Message: "internal error"})
    }
    return c.JSON(status, envelope{Success: false, Code: code, Message: err.Error()})
}

// getUserID extracts the user_id set by the JWT middleware and converts
// it to uint64.
func getUserID(c echo.Context) (uint64, error) {
    v := c.Get("user_id")
    switch t := v.(type) {
    case uint64:
        return t, nil
    case int:
        return uint64(t), nil
    case int64:
        return uint64(t), nil
    case float64:
        return uint64(t), nil
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// getRole returns the role claim stored by the JWT middleware.
func getRole(c echo.Context) string {
    if role, ok := c.Get("role").(string); ok {
        return role
    }
    return ""
}

func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, errors.New("invalid " + name)
    }
    return id, nil
}

// parseDate parses a YYYY-MM-DD service date.
func parseDate(raw string) (time.Time, error) {
    return time.Parse("2006-01-02", raw)
}
