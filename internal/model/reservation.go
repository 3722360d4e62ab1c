package model

import "time"

// ReservationType distinguishes what a booking covers.
type ReservationType string

const (
    ReservationBuffetOnly     ReservationType = "BUFFET_ONLY"      // capacity ledger seats only
    ReservationTableOnly      ReservationType = "TABLE_ONLY"       // physical table assignment only
    ReservationBuffetAndTable ReservationType = "BUFFET_AND_TABLE" // both
)

// HasBuffet reports whether the reservation consumes capacity ledger seats.
func (t ReservationType) HasBuffet() bool {
    return t == ReservationBuffetOnly || t == ReservationBuffetAndTable
}

// HasTable reports whether the reservation occupies table slots.
func (t ReservationType) HasTable() bool {
    return t == ReservationTableOnly || t == ReservationBuffetAndTable
}

// ReservationStatus enumerates the booking lifecycle.  Only CONFIRMED
// and SEATED reservations are cancellable; COMPLETED and CANCELLED are
// terminal.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "PENDING"
    ReservationConfirmed ReservationStatus = "CONFIRMED"
    ReservationSeated    ReservationStatus = "SEATED"
    ReservationCompleted ReservationStatus = "COMPLETED"
    ReservationCancelled ReservationStatus = "CANCELLED"
)

// Cancellable reports whether a reservation in this status may enter
// the cancellation flow.
func (s ReservationStatus) Cancellable() bool {
    return s == ReservationConfirmed || s == ReservationSeated
}

// Reservation records a guest's booking.  Buffet totals and the meal
// type are denormalized onto the row so the cancellation engine can
// compute refunds without joining through meal services.
//
// Fields:
//  ID                 – primary key identifier.
//  UserID             – guest who booked.
//  RestaurantID       – restaurant booked at.
//  MealServiceID      – meal service for buffet bookings (nil for TABLE_ONLY).
//  MealType           – denormalized meal type used for refund policy matching.
//  Type               – BUFFET_ONLY, TABLE_ONLY or BUFFET_AND_TABLE.
//  ServiceDate        – calendar date of the visit.
//  ReservationTime    – scheduled arrival (UTC); combined with ServiceDate
//                       this is the instant refund windows count down to.
//  PartySize          – number of guests.
//  Status             – lifecycle status.
//  TotalAmountCents   – full booking value.
//  AdvanceAmountCents – amount collected up front; the refundable base
//                       for buffet reservations.
type Reservation struct {
    ID                 uint64            // reservations.id
    UserID             uint64            // reservations.user_id
    RestaurantID       uint64            // reservations.restaurant_id
    MealServiceID      *uint64           // reservations.meal_service_id (nullable)
    MealType           string            // reservations.meal_type
    Type               ReservationType   // reservations.reservation_type
    ServiceDate        time.Time         // reservations.service_date
    ReservationTime    time.Time         // reservations.reservation_time
    PartySize          uint32            // reservations.party_size
    Status             ReservationStatus // reservations.status
    TotalAmountCents   int64             // reservations.total_amount_cents
    AdvanceAmountCents int64             // reservations.advance_amount_cents
    CreatedAt          time.Time         // reservations.created_at
    UpdatedAt          time.Time         // reservations.updated_at
}

// RefundableBaseCents returns the amount refund tiers apply to: the
// full total for table-only bookings, the advance payment otherwise.
func (r Reservation) RefundableBaseCents() int64 {
    if r.Type == ReservationTableOnly {
        return r.TotalAmountCents
    }
    return r.AdvanceAmountCents
}

// TableAssignment binds a reservation to its (primary) table and slot.
// It is owned exclusively by the reservation and deleted when the
// assignment is cleared, e.g. on cancellation.
type TableAssignment struct {
    ID            uint64     // reservation_table_assignments.id
    ReservationID uint64     // reservation_table_assignments.reservation_id
    SectionID     uint64     // reservation_table_assignments.section_id
    TableID       uint64     // reservation_table_assignments.table_id
    SlotID        uint64     // reservation_table_assignments.slot_id
    TableStart    time.Time  // reservation_table_assignments.table_start_time
    TableEnd      *time.Time // reservation_table_assignments.table_end_time (nullable)
    CreatedAt     time.Time  // reservation_table_assignments.created_at
}
