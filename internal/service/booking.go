package service

import (
    "context"
    "log"
    "sort"
    "time"

    "github.com/dinebook/table-reservation/internal/clock"
    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/queue"
    "github.com/dinebook/table-reservation/internal/repository"
)

// DefaultHoldTTL is how long a table hold survives before the sweeper
// may reclaim it, unless configured otherwise.
const DefaultHoldTTL = 10 * time.Minute

// DefaultSlotDuration is assumed for slots booked without an explicit
// end time when checking for conflicts.
const DefaultSlotDuration = 90 * time.Minute

// BookingService runs the buffet and table booking flows: capacity
// reservation, the hold/confirm slot lifecycle, merge set creation and
// availability reads. Expired holds are swept inline at the start of
// every read or hold path; there is no background sweeper.
type BookingService struct {
    tx           TxRunner
    restaurants  RestaurantStore
    reservations ReservationStore
    slots        SlotStore
    sets         SetStore
    capacity     CapacityStore
    events       Events
    clock        clock.Clock
    holdTTL      time.Duration
}

// NewBookingService wires a BookingService. A non-positive holdTTL
// falls back to DefaultHoldTTL.
func NewBookingService(tx TxRunner, restaurants RestaurantStore, reservations ReservationStore, slots SlotStore, sets SetStore, capacity CapacityStore, events Events, clk clock.Clock, holdTTL time.Duration) *BookingService {
    if holdTTL <= 0 {
        holdTTL = DefaultHoldTTL
    }
    return &BookingService{
        tx:           tx,
        restaurants:  restaurants,
        reservations: reservations,
        slots:        slots,
        sets:         sets,
        capacity:     capacity,
        events:       events,
        clock:        clk,
        holdTTL:      holdTTL,
    }
}

// BookBuffetInput describes a buffet-only booking.
type BookBuffetInput struct {
    UserID             uint64
    RestaurantID       uint64
    MealServiceID      uint64
    ServiceDate        time.Time
    ReservationTime    time.Time
    PartySize          uint32
    TotalAmountCents   int64
    AdvanceAmountCents int64
}

// BookBuffet reserves buffet seats from the capacity ledger and writes
// a CONFIRMED buffet-only reservation. The conditional seat increment
// is the only guard against over-booking: when the party no longer
// fits, repository.ErrCapacityExceeded comes back and nothing is
// written.
func (s *BookingService) BookBuffet(ctx context.Context, in BookBuffetInput) (model.Reservation, error) {
    if in.PartySize == 0 {
        return model.Reservation{}, ErrPartySizeInvalid
    }
    restaurant, err := s.restaurants.GetByID(ctx, in.RestaurantID)
    if err != nil {
        return model.Reservation{}, err
    }
    if !restaurant.IsActive {
        return model.Reservation{}, ErrRestaurantInactive
    }
    ms, err := s.restaurants.GetMealService(ctx, in.RestaurantID, in.MealServiceID)
    if err != nil {
        return model.Reservation{}, err
    }
    if !ms.IsActive {
        return model.Reservation{}, repository.ErrNotFound
    }

    mealServiceID := in.MealServiceID
    res := model.Reservation{
        UserID:             in.UserID,
        RestaurantID:       in.RestaurantID,
        MealServiceID:      &mealServiceID,
        MealType:           ms.MealType,
        Type:               model.ReservationBuffetOnly,
        ServiceDate:        in.ServiceDate,
        ReservationTime:    in.ReservationTime.UTC(),
        PartySize:          in.PartySize,
        Status:             model.ReservationConfirmed,
        TotalAmountCents:   in.TotalAmountCents,
        AdvanceAmountCents: in.AdvanceAmountCents,
    }
    err = s.tx.WithTx(ctx, func(ctx context.Context) error {
        if err := s.capacity.Reserve(ctx, in.RestaurantID, in.MealServiceID, in.ServiceDate, in.PartySize); err != nil {
            return err
        }
        return s.reservations.Create(ctx, &res)
    })
    if err != nil {
        return model.Reservation{}, err
    }
    s.publishConfirmed(ctx, res, restaurant.Name, nil)
    return res, nil
}

// HoldTablesInput describes a hold request over one or more tables of
// the same restaurant for one window.
type HoldTablesInput struct {
    UserID       uint64
    RestaurantID uint64
    TableIDs     []uint64
    ServiceDate  time.Time
    Start        time.Time
    End          *time.Time
    PartySize    uint32
    AllowBlocked bool // manager override: BLOCKED slots may be pulled into a merge
}

// HoldResult reports the placed holds.
type HoldResult struct {
    SlotIDs    []uint64  `json:"slot_ids"`
    TableSetID *uint64   `json:"table_set_id,omitempty"`
    ExpiresAt  time.Time `json:"expires_at"`
}

// HoldTables claims slots on the requested tables until the hold TTL
// runs out. More than one table creates a PENDING_MERGE table set whose
// snapshot records each secondary slot's pre-merge status, so a later
// dissolution can put a BLOCKED table back to BLOCKED. Expired holds on
// the restaurant are swept before any slot is touched, which is what
// makes abandoned holds reclaimable without a background job.
func (s *BookingService) HoldTables(ctx context.Context, in HoldTablesInput) (HoldResult, error) {
    if in.PartySize == 0 {
        return HoldResult{}, ErrPartySizeInvalid
    }
    if len(in.TableIDs) == 0 {
        return HoldResult{}, repository.ErrNotFound
    }
    now := s.clock.Now()
    restaurant, err := s.restaurants.GetByID(ctx, in.RestaurantID)
    if err != nil {
        return HoldResult{}, err
    }
    if !restaurant.IsActive {
        return HoldResult{}, ErrRestaurantInactive
    }
    tables, err := s.restaurants.GetTables(ctx, in.RestaurantID, in.TableIDs)
    if err != nil {
        return HoldResult{}, err
    }
    var combined uint32
    for _, id := range in.TableIDs {
        t, ok := tables[id]
        if !ok {
            return HoldResult{}, repository.ErrNotFound
        }
        combined += t.Capacity
    }
    if combined < in.PartySize {
        return HoldResult{}, ErrTableTooSmall
    }

    if _, err := s.slots.SweepExpiredHolds(ctx, in.RestaurantID, now); err != nil {
        return HoldResult{}, err
    }

    expiresAt := now.Add(s.holdTTL)
    dwell := time.Duration(restaurant.DwellOrDefault()) * time.Minute
    result := HoldResult{ExpiresAt: expiresAt}

    err = s.tx.WithTx(ctx, func(ctx context.Context) error {
        slotIDs := make([]uint64, 0, len(in.TableIDs))
        statuses := make(map[uint64]model.SlotStatus)
        for _, tableID := range in.TableIDs {
            occupancies, err := s.slots.ListOccupancies(ctx, tableID, in.ServiceDate)
            if err != nil {
                return err
            }
            if occupiedDuring(occupancies, in.Start, in.End, dwell) {
                return ErrTableConflict
            }
            slot, err := s.slots.FindOrCreate(ctx, tableID, in.ServiceDate, in.Start, in.End)
            if err != nil {
                return err
            }
            if slot.Status != model.SlotAvailable {
                statuses[slot.ID] = slot.Status
            }
            if err := s.slots.Hold(ctx, slot.ID, in.UserID, expiresAt, in.AllowBlocked); err != nil {
                return err
            }
            slotIDs = append(slotIDs, slot.ID)
        }
        result.SlotIDs = slotIDs

        if len(in.TableIDs) > 1 {
            set := model.TableSet{
                TableIDs:         in.TableIDs,
                SlotIDs:          slotIDs,
                PrimaryTableID:   primaryTableID(in.TableIDs, tables),
                OriginalStatuses: statuses,
                CombinedCapacity: combined,
            }
            if err := s.sets.Create(ctx, &set); err != nil {
                return err
            }
            id := set.ID
            result.TableSetID = &id
        }
        return nil
    })
    if err != nil {
        return HoldResult{}, err
    }
    return result, nil
}

// occupiedDuring reports whether the candidate window collides with any
// existing occupancy once each occupancy is extended by the dwell time.
// Open-ended windows assume the default slot duration.
func occupiedDuring(occupancies []repository.OccupancyWindow, start time.Time, end *time.Time, dwell time.Duration) bool {
    candEnd := start.Add(DefaultSlotDuration)
    if end != nil {
        candEnd = *end
    }
    for _, w := range occupancies {
        effEnd := w.Start.Add(DefaultSlotDuration)
        if w.End != nil {
            effEnd = *w.End
        }
        effEnd = effEnd.Add(dwell)
        if start.Before(effEnd) && candEnd.After(w.Start) {
            return true
        }
    }
    return false
}

// primaryTableID picks the largest-capacity table as the merge set's
// primary, breaking ties on the lower ID for determinism.
func primaryTableID(tableIDs []uint64, tables map[uint64]model.DiningTable) uint64 {
    sorted := append([]uint64(nil), tableIDs...)
    sort.Slice(sorted, func(i, j int) bool {
        ti, tj := tables[sorted[i]], tables[sorted[j]]
        if ti.Capacity != tj.Capacity {
            return ti.Capacity > tj.Capacity
        }
        return sorted[i] < sorted[j]
    })
    return sorted[0]
}

// ConfirmTablesInput finalizes a guest's held tables into a reservation.
type ConfirmTablesInput struct {
    UserID             uint64
    RestaurantID       uint64
    Type               model.ReservationType // TABLE_ONLY or BUFFET_AND_TABLE
    MealServiceID      *uint64               // required when the type includes buffet
    ServiceDate        time.Time
    ReservationTime    time.Time
    PartySize          uint32
    TotalAmountCents   int64
    AdvanceAmountCents int64
}

// ConfirmTables promotes the caller's live holds to RESERVED, creates
// the reservation, binds a pending merge set when one was created at
// hold time, and reserves buffet seats when the booking includes the
// buffet. Holds that expired in the meantime were either swept or fail
// the conditional HELD check, so a stale confirm cannot steal a slot.
func (s *BookingService) ConfirmTables(ctx context.Context, in ConfirmTablesInput) (model.Reservation, error) {
    if in.PartySize == 0 {
        return model.Reservation{}, ErrPartySizeInvalid
    }
    if !in.Type.HasTable() {
        return model.Reservation{}, repository.ErrNotFound
    }
    now := s.clock.Now()
    restaurant, err := s.restaurants.GetByID(ctx, in.RestaurantID)
    if err != nil {
        return model.Reservation{}, err
    }

    mealType := ""
    if in.Type.HasBuffet() {
        if in.MealServiceID == nil {
            return model.Reservation{}, repository.ErrNotFound
        }
        ms, err := s.restaurants.GetMealService(ctx, in.RestaurantID, *in.MealServiceID)
        if err != nil {
            return model.Reservation{}, err
        }
        mealType = ms.MealType
    }

    res := model.Reservation{
        UserID:             in.UserID,
        RestaurantID:       in.RestaurantID,
        MealServiceID:      in.MealServiceID,
        MealType:           mealType,
        Type:               in.Type,
        ServiceDate:        in.ServiceDate,
        ReservationTime:    in.ReservationTime.UTC(),
        PartySize:          in.PartySize,
        Status:             model.ReservationConfirmed,
        TotalAmountCents:   in.TotalAmountCents,
        AdvanceAmountCents: in.AdvanceAmountCents,
    }
    var tableLabels []string

    err = s.tx.WithTx(ctx, func(ctx context.Context) error {
        slotIDs, err := s.slots.ActiveHoldSlotIDs(ctx, in.UserID, in.RestaurantID, in.ServiceDate, now)
        if err != nil {
            return err
        }
        if len(slotIDs) == 0 {
            return ErrNoActiveHolds
        }
        if in.Type.HasBuffet() {
            if err := s.capacity.Reserve(ctx, in.RestaurantID, *in.MealServiceID, in.ServiceDate, in.PartySize); err != nil {
                return err
            }
        }
        if err := s.reservations.Create(ctx, &res); err != nil {
            return err
        }
        for _, slotID := range slotIDs {
            if err := s.slots.Confirm(ctx, slotID, res.ID); err != nil {
                return err
            }
        }

        // A multi-table hold left a PENDING_MERGE set behind; bind it.
        // The assignment row always points at the primary table.
        assignSlotID := slotIDs[0]
        set, err := s.sets.FindPendingBySlot(ctx, slotIDs[0])
        if err != nil {
            return err
        }
        if set != nil {
            if err := s.sets.Activate(ctx, set.ID, res.ID); err != nil {
                return err
            }
            if primary, ok := set.PrimarySlotID(); ok {
                assignSlotID = primary
            }
        }
        slot, err := s.slots.GetByID(ctx, assignSlotID)
        if err != nil {
            return err
        }
        table, err := s.restaurants.GetTable(ctx, in.RestaurantID, slot.TableID)
        if err != nil {
            return err
        }
        tableLabels = append(tableLabels, table.Label)
        assignment := model.TableAssignment{
            ReservationID: res.ID,
            SectionID:     table.SectionID,
            TableID:       table.ID,
            SlotID:        slot.ID,
            TableStart:    slot.StartTime,
            TableEnd:      slot.EndTime,
        }
        return s.reservations.CreateAssignment(ctx, &assignment)
    })
    if err != nil {
        return model.Reservation{}, err
    }
    s.publishConfirmed(ctx, res, restaurant.Name, tableLabels)
    return res, nil
}

// ReleaseHolds drops all of the caller's holds for a restaurant and
// date and returns the freed slots to the pool. A pending merge set
// touched by any of those holds is dissolved, restoring every member
// slot to its snapshotted status.
func (s *BookingService) ReleaseHolds(ctx context.Context, userID, restaurantID uint64, date time.Time) (int, error) {
    now := s.clock.Now()
    released := 0
    err := s.tx.WithTx(ctx, func(ctx context.Context) error {
        slotIDs, err := s.slots.DeleteHoldsByUser(ctx, userID, restaurantID, date)
        if err != nil {
            return err
        }
        handled := make(map[uint64]bool, len(slotIDs))
        for _, slotID := range slotIDs {
            if handled[slotID] {
                continue
            }
            set, err := s.sets.FindPendingBySlot(ctx, slotID)
            if err != nil {
                return err
            }
            if set != nil {
                primary, _ := set.PrimarySlotID()
                for _, member := range set.SlotIDs {
                    if member == primary {
                        if err := s.slots.Release(ctx, member); err != nil {
                            return err
                        }
                    } else if err := s.slots.RestoreStatus(ctx, member, set.RestoreStatusFor(member)); err != nil {
                        return err
                    }
                    handled[member] = true
                    released++
                }
                if err := s.sets.MarkDissolved(ctx, set.ID, userID, now); err != nil {
                    return err
                }
                continue
            }
            if err := s.slots.Release(ctx, slotID); err != nil {
                return err
            }
            handled[slotID] = true
            released++
        }
        return nil
    })
    if err != nil {
        return 0, err
    }
    return released, nil
}

// TableAvailability is one table's slots for the requested date.
type TableAvailability struct {
    TableID   uint64            `json:"table_id"`
    SectionID uint64            `json:"section_id"`
    Label     string            `json:"label"`
    Capacity  uint32            `json:"capacity"`
    Slots     []model.TableSlot `json:"slots"`
}

// AvailabilityResult is the public availability view of one restaurant
// on one date.
type AvailabilityResult struct {
    Capacity []model.CapacityRecord `json:"capacity"`
    Tables   []TableAvailability    `json:"tables"`
}

// Availability sweeps expired holds and then reads the capacity ledger
// and slot registry for the date. The sweep-before-read is what keeps
// expired holds from ever being visible to callers.
func (s *BookingService) Availability(ctx context.Context, restaurantID uint64, date time.Time) (AvailabilityResult, error) {
    now := s.clock.Now()
    if n, err := s.slots.SweepExpiredHolds(ctx, restaurantID, now); err != nil {
        return AvailabilityResult{}, err
    } else if n > 0 {
        log.Printf("availability: swept %d expired holds for restaurant %d", n, restaurantID)
    }
    capacity, err := s.capacity.ListByDate(ctx, restaurantID, date)
    if err != nil {
        return AvailabilityResult{}, err
    }
    tables, err := s.restaurants.ListTablesBySection(ctx, restaurantID)
    if err != nil {
        return AvailabilityResult{}, err
    }
    tableIDs := make([]uint64, 0, len(tables))
    for _, t := range tables {
        tableIDs = append(tableIDs, t.ID)
    }
    slots, err := s.slots.ListForDate(ctx, tableIDs, date)
    if err != nil {
        return AvailabilityResult{}, err
    }
    byTable := make(map[uint64][]model.TableSlot, len(tables))
    for _, slot := range slots {
        byTable[slot.TableID] = append(byTable[slot.TableID], slot)
    }
    out := AvailabilityResult{Capacity: capacity, Tables: make([]TableAvailability, 0, len(tables))}
    for _, t := range tables {
        out.Tables = append(out.Tables, TableAvailability{
            TableID:   t.ID,
            SectionID: t.SectionID,
            Label:     t.Label,
            Capacity:  t.Capacity,
            Slots:     byTable[t.ID],
        })
    }
    return out, nil
}

// PopulateCapacity creates capacity records for every active meal
// service of the restaurant over the coming days, skipping days that
// already exist. Only the restaurant's manager may run it. Returns how
// many records were created.
func (s *BookingService) PopulateCapacity(ctx context.Context, restaurantID, managerID uint64, from time.Time, days int, totalSeats uint32) (int, error) {
    if err := s.requireOwner(ctx, restaurantID, managerID); err != nil {
        return 0, err
    }
    services, err := s.restaurants.ListActiveMealServices(ctx, restaurantID)
    if err != nil {
        return 0, err
    }
    created := 0
    for d := 0; d < days; d++ {
        date := from.AddDate(0, 0, d)
        for _, ms := range services {
            inserted, err := s.capacity.InsertIgnore(ctx, restaurantID, ms.ID, date, totalSeats)
            if err != nil {
                return created, err
            }
            if inserted {
                created++
            }
        }
    }
    return created, nil
}

// DisableDay turns off a capacity day. Days that already have booked
// seats are left enabled; the false return reports that to the caller.
func (s *BookingService) DisableDay(ctx context.Context, restaurantID, managerID, mealServiceID uint64, date time.Time) (bool, error) {
    if err := s.requireOwner(ctx, restaurantID, managerID); err != nil {
        return false, err
    }
    return s.capacity.Disable(ctx, restaurantID, mealServiceID, date)
}

// SetSlotStatus moves a slot into or out of the administrative statuses
// (BLOCKED, MAINTENANCE, back to AVAILABLE). The slot is created lazily
// when the window has never been touched. RESERVED and HELD slots are
// protected by the conditional update underneath.
func (s *BookingService) SetSlotStatus(ctx context.Context, managerID, restaurantID, tableID uint64, date, start time.Time, end *time.Time, status model.SlotStatus) (model.TableSlot, error) {
    if err := s.requireOwner(ctx, restaurantID, managerID); err != nil {
        return model.TableSlot{}, err
    }
    if !status.Valid() {
        return model.TableSlot{}, repository.ErrNotFound
    }
    if _, err := s.restaurants.GetTable(ctx, restaurantID, tableID); err != nil {
        return model.TableSlot{}, err
    }
    slot, err := s.slots.FindOrCreate(ctx, tableID, date, start, end)
    if err != nil {
        return model.TableSlot{}, err
    }
    if status == model.SlotAvailable {
        if err := s.slots.Release(ctx, slot.ID); err != nil {
            return model.TableSlot{}, err
        }
    } else if err := s.slots.SetAdminStatus(ctx, slot.ID, status); err != nil {
        return model.TableSlot{}, err
    }
    return s.slots.GetByID(ctx, slot.ID)
}

func (s *BookingService) requireOwner(ctx context.Context, restaurantID, userID uint64) error {
    owner, err := s.restaurants.IsOwner(ctx, restaurantID, userID)
    if err != nil {
        return err
    }
    if !owner {
        return repository.ErrForbidden
    }
    return nil
}

func (s *BookingService) publishConfirmed(ctx context.Context, res model.Reservation, restaurantName string, tableLabels []string) {
    ev := queue.ReservationConfirmedEvent{
        ReservationID:    res.ID,
        UserID:           res.UserID,
        RestaurantID:     res.RestaurantID,
        RestaurantName:   restaurantName,
        ReservationType:  string(res.Type),
        MealType:         res.MealType,
        ServiceDate:      res.ServiceDate.Format("2006-01-02"),
        ReservationTime:  res.ReservationTime.UTC().Format(time.RFC3339),
        PartySize:        res.PartySize,
        TableLabels:      tableLabels,
        TotalAmountCents: res.TotalAmountCents,
        ConfirmedAt:      s.clock.Now().Format(time.RFC3339),
    }
    if err := s.events.ReservationConfirmed(ctx, ev); err != nil {
        log.Printf("booking: event publish failed for reservation %d: %v", res.ID, err)
    }
}
