package model

import "time"

// SlotStatus enumerates the states of a table slot.  Transitions are
// validated by CanTransitionTo; arbitrary string assignment is not part
// of the contract.
type SlotStatus string

const (
    SlotAvailable   SlotStatus = "AVAILABLE"   // bookable
    SlotHeld        SlotStatus = "HELD"        // temporarily claimed, expires
    SlotReserved    SlotStatus = "RESERVED"    // bound to a confirmed reservation
    SlotBlocked     SlotStatus = "BLOCKED"     // administratively blocked
    SlotMaintenance SlotStatus = "MAINTENANCE" // out of service
)

// slotTransitions is the allowed-transition table for the slot state
// machine.  Release (any status back to AVAILABLE) is always legal and
// handled separately, because cancellation must be able to unwind a
// slot regardless of how it got into its current state.
var slotTransitions = map[SlotStatus][]SlotStatus{
    SlotAvailable:   {SlotHeld, SlotBlocked, SlotMaintenance},
    SlotHeld:        {SlotReserved, SlotAvailable},
    SlotReserved:    {SlotAvailable},
    SlotBlocked:     {SlotAvailable, SlotMaintenance},
    SlotMaintenance: {SlotAvailable, SlotBlocked},
}

// Valid reports whether s is one of the known slot statuses.
func (s SlotStatus) Valid() bool {
    _, ok := slotTransitions[s]
    return ok
}

// CanTransitionTo reports whether moving from s to next is an allowed
// state machine transition.
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
    for _, t := range slotTransitions[s] {
        if t == next {
            return true
        }
    }
    return false
}

// TableSlot is the per-table, per-date, per-window availability record.
// Slots are created lazily on the first hold attempt for a window and
// reused across their lifecycle rather than deleted.
//
// Invariant: ReservationID is non-nil exactly when Status is RESERVED.
// Every other status clears it.
//
// Fields:
//  ID            – primary key identifier.
//  TableID       – the dining table this slot belongs to.
//  SlotDate      – calendar date of the window.
//  StartTime     – window start (UTC).
//  EndTime       – window end (nil when open-ended; the conflict checker
//                  then assumes a 90 minute duration).
//  Status        – current slot status.
//  ReservationID – reservation bound to the slot while RESERVED.
//  HoldExpiresAt – expiry of the active hold while HELD.
type TableSlot struct {
    ID            uint64     // table_slots.id
    TableID       uint64     // table_slots.table_id
    SlotDate      time.Time  // table_slots.slot_date
    StartTime     time.Time  // table_slots.start_time
    EndTime       *time.Time // table_slots.end_time (nullable)
    Status        SlotStatus // table_slots.status
    ReservationID *uint64    // table_slots.reservation_id (nullable)
    HoldExpiresAt *time.Time // table_slots.hold_expires_at (nullable)
    CreatedAt     time.Time  // table_slots.created_at
    UpdatedAt     time.Time  // table_slots.updated_at
}

// TableHold is the hold record backing a HELD slot.  Holds carry their
// own expiry so the sweeper can find and remove them; the paired slot
// row mirrors the expiry in hold_expires_at.
type TableHold struct {
    ID        uint64    // table_holds.id
    SlotID    uint64    // table_holds.slot_id
    UserID    uint64    // table_holds.user_id
    HoldToken string    // table_holds.hold_token
    ExpiresAt time.Time // table_holds.expires_at
    CreatedAt time.Time // table_holds.created_at
}
