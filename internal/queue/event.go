// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// ReservationConfirmedEvent is published when a reservation is successfully
// confirmed. It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
type ReservationConfirmedEvent struct {
    ReservationID    uint64   `json:"reservation_id"`
    UserID           uint64   `json:"user_id"`
    RestaurantID     uint64   `json:"restaurant_id"`
    RestaurantName   string   `json:"restaurant_name"`
    ReservationType  string   `json:"reservation_type"`
    MealType         string   `json:"meal_type"`
    ServiceDate      string   `json:"service_date"`
    ReservationTime  string   `json:"reservation_time"`
    PartySize        uint32   `json:"party_size"`
    TableLabels      []string `json:"tables"`
    TotalAmountCents int64    `json:"total_amount_cents"`
    ConfirmedAt      string   `json:"confirmed_at"`
}

// ReservationCancelledEvent is published after a cancellation commits.
// RefundAmountCents is zero for NO_REFUND outcomes; NoRefundReason then
// carries the informational reason recorded on the cancellation request.
type ReservationCancelledEvent struct {
    ReservationID     uint64   `json:"reservation_id"`
    UserID            uint64   `json:"user_id"`
    RestaurantID      uint64   `json:"restaurant_id"`
    WindowType        string   `json:"window_type"`
    RefundAmountCents int64    `json:"refund_amount_cents"`
    RefundPercentage  uint32   `json:"refund_percentage"`
    NoRefundReason    string   `json:"no_refund_reason,omitempty"`
    ReleasedSlotIDs   []uint64 `json:"released_slot_ids"`
    MergedTableCount  uint32   `json:"merged_table_count"`
    CancelledAt       string   `json:"cancelled_at"`
}
