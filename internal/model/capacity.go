package model

import "time"

// CapacityRecord tracks total versus booked buffet seats for one
// restaurant, meal service and calendar date.  Rows are created by the
// capacity population job and mutated only through conditional updates:
// booking increments booked_seats when the new total still fits, and
// cancellation decrements it when enough seats are booked.  The
// 0 <= booked <= total invariant is enforced at write time by those
// conditional updates, not by a database constraint.
//
// Records are never deleted.  A day that becomes unavailable is
// disabled instead, and only while booked_seats is zero.
//
// Fields:
//  ID            – primary key identifier.
//  RestaurantID  – restaurant the seats belong to.
//  MealServiceID – meal service the seats belong to.
//  ServiceDate   – calendar date (DATE column, UTC midnight).
//  TotalSeats    – configured seat capacity for the day.
//  BookedSeats   – currently reserved seats.
//  IsEnabled     – whether the day accepts bookings.
type CapacityRecord struct {
    ID            uint64    // capacity_records.id
    RestaurantID  uint64    // capacity_records.restaurant_id
    MealServiceID uint64    // capacity_records.meal_service_id
    ServiceDate   time.Time // capacity_records.service_date
    TotalSeats    uint32    // capacity_records.total_seats
    BookedSeats   uint32    // capacity_records.booked_seats
    IsEnabled     bool      // capacity_records.is_enabled
    CreatedAt     time.Time // capacity_records.created_at
    UpdatedAt     time.Time // capacity_records.updated_at
}

// Remaining returns the number of seats still bookable for the day.
func (c CapacityRecord) Remaining() uint32 {
    if c.BookedSeats >= c.TotalSeats {
        return 0
    }
    return c.TotalSeats - c.BookedSeats
}
