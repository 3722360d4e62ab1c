package model

import "time"

// TableSetStatus enumerates the lifecycle of a merge set.
type TableSetStatus string

const (
    TableSetPendingMerge TableSetStatus = "PENDING_MERGE" // tables held, not yet confirmed
    TableSetActive       TableSetStatus = "ACTIVE"        // bound to a confirmed reservation
    TableSetDissolved    TableSetStatus = "DISSOLVED"     // unwound by cancellation or hold release
)

// TableSet groups multiple tables combined to seat one party that
// exceeds any single table's capacity.  One member is the designated
// primary table; its slot follows the normal single-table assignment
// path.  The remaining (secondary) slots record the status they held
// before being folded into the merge, so dissolving the set can put a
// BLOCKED table back to BLOCKED instead of silently making it bookable.
//
// TableIDs and SlotIDs are index-aligned: SlotIDs[i] is the slot of
// TableIDs[i].  Both are persisted as JSON arrays, OriginalStatuses as
// a JSON object keyed by slot ID.  A slot missing from OriginalStatuses
// restores to AVAILABLE.
type TableSet struct {
    ID               uint64                // table_sets.id
    ReservationID    *uint64               // table_sets.reservation_id (nullable until confirmed)
    TableIDs         []uint64              // table_sets.table_ids (JSON)
    SlotIDs          []uint64              // table_sets.slot_ids (JSON)
    PrimaryTableID   uint64                // table_sets.primary_table_id
    OriginalStatuses map[uint64]SlotStatus // table_sets.original_statuses (JSON)
    Status           TableSetStatus        // table_sets.status
    CombinedCapacity uint32                // table_sets.combined_capacity
    DissolvedAt      *time.Time            // table_sets.dissolved_at (nullable)
    DissolvedBy      *uint64               // table_sets.dissolved_by (nullable)
    CreatedAt        time.Time             // table_sets.created_at
    UpdatedAt        time.Time             // table_sets.updated_at
}

// PrimarySlotID returns the slot belonging to the primary table, using
// the index alignment between TableIDs and SlotIDs.  The second return
// is false when the primary table is not a member (corrupt set).
func (s TableSet) PrimarySlotID() (uint64, bool) {
    for i, tid := range s.TableIDs {
        if tid == s.PrimaryTableID && i < len(s.SlotIDs) {
            return s.SlotIDs[i], true
        }
    }
    return 0, false
}

// SecondarySlotIDs returns every member slot except the primary's.
func (s TableSet) SecondarySlotIDs() []uint64 {
    primary, ok := s.PrimarySlotID()
    out := make([]uint64, 0, len(s.SlotIDs))
    for _, sid := range s.SlotIDs {
        if ok && sid == primary {
            continue
        }
        out = append(out, sid)
    }
    return out
}

// RestoreStatusFor returns the status a secondary slot should revert to
// on dissolution: the snapshot entry when present, AVAILABLE otherwise.
func (s TableSet) RestoreStatusFor(slotID uint64) SlotStatus {
    if st, ok := s.OriginalStatuses[slotID]; ok && st.Valid() {
        return st
    }
    return SlotAvailable
}
