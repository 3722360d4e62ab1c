package service

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/dinebook/table-reservation/internal/clock"
    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/repository"
)

var bookNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// bookFixture seeds one restaurant with a dinner service, three tables
// of different sizes and a 12 seat capacity day two days out.
func bookFixture(t *testing.T) (*memStore, *BookingService, time.Time) {
    t.Helper()
    m := newMemStore()
    m.restaurants[1] = model.Restaurant{ID: 1, OwnerID: managerID, Name: "Smörgåsbord", IsActive: true}
    m.mealServices[10] = model.MealService{ID: 10, RestaurantID: 1, Name: "Dinner", MealType: "DINNER", IsActive: true}
    m.tables[21] = model.DiningTable{ID: 21, RestaurantID: 1, SectionID: 5, Label: "T1", Capacity: 4, IsActive: true}
    m.tables[22] = model.DiningTable{ID: 22, RestaurantID: 1, SectionID: 5, Label: "T2", Capacity: 6, IsActive: true}
    m.tables[23] = model.DiningTable{ID: 23, RestaurantID: 1, SectionID: 5, Label: "T3", Capacity: 2, IsActive: true}

    date := bookNow.AddDate(0, 0, 2)
    if _, err := m.InsertIgnore(context.Background(), 1, 10, date, 12); err != nil {
        t.Fatalf("seed capacity: %v", err)
    }
    return m, newTestBooking(m, clock.NewFixed(bookNow)), date
}

func TestBookBuffetConsumesCapacity(t *testing.T) {
    m, svc, date := bookFixture(t)
    in := BookBuffetInput{
        UserID:             guestID,
        RestaurantID:       1,
        MealServiceID:      10,
        ServiceDate:        date,
        ReservationTime:    date.Add(18 * time.Hour),
        PartySize:          5,
        TotalAmountCents:   40000,
        AdvanceAmountCents: 10000,
    }

    first, err := svc.BookBuffet(context.Background(), in)
    if err != nil {
        t.Fatalf("first BookBuffet: %v", err)
    }
    if first.Status != model.ReservationConfirmed {
        t.Errorf("status = %s, want CONFIRMED", first.Status)
    }
    if first.MealType != "DINNER" {
        t.Errorf("meal type = %q, want DINNER", first.MealType)
    }
    if _, err := svc.BookBuffet(context.Background(), in); err != nil {
        t.Fatalf("second BookBuffet: %v", err)
    }

    // 10 of 12 seats taken; a party of 4 no longer fits.
    in.PartySize = 4
    if _, err := svc.BookBuffet(context.Background(), in); !errors.Is(err, repository.ErrCapacityExceeded) {
        t.Fatalf("overbooking error = %v, want ErrCapacityExceeded", err)
    }
    rec := m.capacity[capKey(1, 10, date)]
    if rec.BookedSeats != 10 {
        t.Errorf("booked seats = %d, want 10", rec.BookedSeats)
    }
    if len(m.confirmed) != 2 {
        t.Errorf("confirmed events = %d, want 2", len(m.confirmed))
    }
}

func TestBookBuffetValidation(t *testing.T) {
    m, svc, date := bookFixture(t)
    in := BookBuffetInput{UserID: guestID, RestaurantID: 1, MealServiceID: 10, ServiceDate: date, ReservationTime: date, PartySize: 0}
    if _, err := svc.BookBuffet(context.Background(), in); !errors.Is(err, ErrPartySizeInvalid) {
        t.Fatalf("zero party error = %v, want ErrPartySizeInvalid", err)
    }

    r := m.restaurants[1]
    r.IsActive = false
    m.restaurants[1] = r
    in.PartySize = 2
    if _, err := svc.BookBuffet(context.Background(), in); !errors.Is(err, ErrRestaurantInactive) {
        t.Fatalf("inactive restaurant error = %v, want ErrRestaurantInactive", err)
    }
}

func TestHoldSingleTable(t *testing.T) {
    m, svc, date := bookFixture(t)
    result, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        date.Add(18 * time.Hour),
        PartySize:    4,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }
    if len(result.SlotIDs) != 1 {
        t.Fatalf("slot ids = %v, want one", result.SlotIDs)
    }
    if result.TableSetID != nil {
        t.Error("single-table hold created a table set")
    }
    if want := bookNow.Add(DefaultHoldTTL); !result.ExpiresAt.Equal(want) {
        t.Errorf("expires at = %v, want %v", result.ExpiresAt, want)
    }
    slot := m.slots[result.SlotIDs[0]]
    if slot.Status != model.SlotHeld {
        t.Errorf("slot status = %s, want HELD", slot.Status)
    }
}

func TestHoldTooSmallCombination(t *testing.T) {
    _, svc, date := bookFixture(t)
    _, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21, 23}, // 4 + 2 seats
        ServiceDate:  date,
        Start:        date.Add(18 * time.Hour),
        PartySize:    8,
    })
    if !errors.Is(err, ErrTableTooSmall) {
        t.Fatalf("error = %v, want ErrTableTooSmall", err)
    }
}

func TestHoldMultipleTablesCreatesMergeSet(t *testing.T) {
    m, svc, date := bookFixture(t)
    result, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21, 22},
        ServiceDate:  date,
        Start:        date.Add(18 * time.Hour),
        PartySize:    9,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }
    if result.TableSetID == nil {
        t.Fatal("no table set created for a multi-table hold")
    }
    set := m.sets[*result.TableSetID]
    if set.Status != model.TableSetPendingMerge {
        t.Errorf("set status = %s, want PENDING_MERGE", set.Status)
    }
    // Table 22 seats 6, table 21 seats 4; the bigger one is primary.
    if set.PrimaryTableID != 22 {
        t.Errorf("primary table = %d, want 22", set.PrimaryTableID)
    }
    if set.CombinedCapacity != 10 {
        t.Errorf("combined capacity = %d, want 10", set.CombinedCapacity)
    }
    // All member slots started AVAILABLE, so the snapshot stays empty.
    if len(set.OriginalStatuses) != 0 {
        t.Errorf("snapshot = %v, want empty", set.OriginalStatuses)
    }
}

func TestHoldBlockedTableRequiresOverride(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)
    slot, err := m.FindOrCreate(context.Background(), 21, date, start, nil)
    if err != nil {
        t.Fatalf("seed slot: %v", err)
    }
    m.slots[slot.ID].Status = model.SlotBlocked

    in := HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21, 22},
        ServiceDate:  date,
        Start:        start,
        PartySize:    9,
    }
    if _, err := svc.HoldTables(context.Background(), in); !errors.Is(err, repository.ErrSlotUnavailable) {
        t.Fatalf("guest error = %v, want ErrSlotUnavailable", err)
    }

    in.AllowBlocked = true
    result, err := svc.HoldTables(context.Background(), in)
    if err != nil {
        t.Fatalf("manager override: %v", err)
    }
    set := m.sets[*result.TableSetID]
    // The pre-merge BLOCKED status is snapshotted so dissolution can
    // restore it.
    if got := set.OriginalStatuses[slot.ID]; got != model.SlotBlocked {
        t.Errorf("snapshot for blocked slot = %s, want BLOCKED", got)
    }
}

func TestHoldConflictsWithDwellExtendedOccupancy(t *testing.T) {
    m, svc, date := bookFixture(t)

    // An existing confirmed booking sits at 18:00 with no explicit end:
    // 90 minutes assumed plus 90 minutes dwell keeps the table busy
    // until 21:00.
    res := &model.Reservation{UserID: 7, RestaurantID: 1, Type: model.ReservationTableOnly, ServiceDate: date, ReservationTime: date.Add(18 * time.Hour), PartySize: 2, Status: model.ReservationConfirmed}
    if err := m.Create(context.Background(), res); err != nil {
        t.Fatalf("seed reservation: %v", err)
    }
    if err := m.CreateAssignment(context.Background(), &model.TableAssignment{
        ReservationID: res.ID,
        SectionID:     5,
        TableID:       21,
        SlotID:        999,
        TableStart:    date.Add(18 * time.Hour),
    }); err != nil {
        t.Fatalf("seed assignment: %v", err)
    }

    in := HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        date.Add(20 * time.Hour),
        PartySize:    2,
    }
    if _, err := svc.HoldTables(context.Background(), in); !errors.Is(err, ErrTableConflict) {
        t.Fatalf("20:00 hold error = %v, want ErrTableConflict", err)
    }

    in.Start = date.Add(21 * time.Hour)
    if _, err := svc.HoldTables(context.Background(), in); err != nil {
        t.Fatalf("21:00 hold: %v", err)
    }
}

func TestHoldSweepsExpiredHoldsFirst(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    slot, err := m.FindOrCreate(context.Background(), 21, date, start, nil)
    if err != nil {
        t.Fatalf("seed slot: %v", err)
    }
    // Another guest's hold that expired a minute ago.
    if err := m.Hold(context.Background(), slot.ID, 777, bookNow.Add(-time.Minute), false); err != nil {
        t.Fatalf("seed hold: %v", err)
    }

    result, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        start,
        PartySize:    4,
    })
    if err != nil {
        t.Fatalf("HoldTables over expired hold: %v", err)
    }
    if m.holds[result.SlotIDs[0]].UserID != guestID {
        t.Errorf("hold owner = %d, want %d", m.holds[result.SlotIDs[0]].UserID, guestID)
    }
}

func TestSweepExpiredHoldsIdempotent(t *testing.T) {
    m, _, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    slot, err := m.FindOrCreate(context.Background(), 21, date, start, nil)
    if err != nil {
        t.Fatalf("seed slot: %v", err)
    }
    if err := m.Hold(context.Background(), slot.ID, 777, bookNow.Add(-time.Minute), false); err != nil {
        t.Fatalf("seed hold: %v", err)
    }

    n, err := m.SweepExpiredHolds(context.Background(), 1, bookNow)
    if err != nil || n != 1 {
        t.Fatalf("first sweep = (%d, %v), want (1, nil)", n, err)
    }
    if got := m.slots[slot.ID].Status; got != model.SlotAvailable {
        t.Errorf("slot status after sweep = %s, want AVAILABLE", got)
    }
    n, err = m.SweepExpiredHolds(context.Background(), 1, bookNow)
    if err != nil || n != 0 {
        t.Fatalf("second sweep = (%d, %v), want (0, nil)", n, err)
    }
}

func TestSweepLeavesFreshHoldsAlone(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    // A guest holds table 21 just before the sweep runs; only the
    // stale hold on table 22 may be released.
    result, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        start,
        PartySize:    4,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }
    fresh := result.SlotIDs[0]

    stale, err := m.FindOrCreate(context.Background(), 22, date, start, nil)
    if err != nil {
        t.Fatalf("seed stale slot: %v", err)
    }
    if err := m.Hold(context.Background(), stale.ID, 777, bookNow.Add(-time.Minute), false); err != nil {
        t.Fatalf("seed stale hold: %v", err)
    }

    n, err := m.SweepExpiredHolds(context.Background(), 1, bookNow)
    if err != nil || n != 1 {
        t.Fatalf("sweep = (%d, %v), want (1, nil)", n, err)
    }
    if got := m.slots[fresh].Status; got != model.SlotHeld {
        t.Errorf("fresh slot status = %s, want HELD", got)
    }
    if h, ok := m.holds[fresh]; !ok || h.UserID != guestID {
        t.Fatalf("fresh hold row gone or reassigned: %+v", m.holds[fresh])
    }
    if _, err := svc.ConfirmTables(context.Background(), ConfirmTablesInput{
        UserID:           guestID,
        RestaurantID:     1,
        Type:             model.ReservationTableOnly,
        ServiceDate:      date,
        ReservationTime:  start,
        PartySize:        4,
        TotalAmountCents: 5000,
    }); err != nil {
        t.Fatalf("ConfirmTables after sweep: %v", err)
    }
}

func TestHoldLiveHoldBlocksOthers(t *testing.T) {
    _, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)
    in := HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        start,
        PartySize:    4,
    }
    if _, err := svc.HoldTables(context.Background(), in); err != nil {
        t.Fatalf("first hold: %v", err)
    }
    in.UserID = 777
    if _, err := svc.HoldTables(context.Background(), in); !errors.Is(err, repository.ErrSlotUnavailable) {
        t.Fatalf("competing hold error = %v, want ErrSlotUnavailable", err)
    }
}

func TestConfirmTablesSingle(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)
    held, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21},
        ServiceDate:  date,
        Start:        start,
        PartySize:    4,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }

    res, err := svc.ConfirmTables(context.Background(), ConfirmTablesInput{
        UserID:           guestID,
        RestaurantID:     1,
        Type:             model.ReservationTableOnly,
        ServiceDate:      date,
        ReservationTime:  start,
        PartySize:        4,
        TotalAmountCents: 5000,
    })
    if err != nil {
        t.Fatalf("ConfirmTables: %v", err)
    }
    slot := m.slots[held.SlotIDs[0]]
    if slot.Status != model.SlotReserved {
        t.Errorf("slot status = %s, want RESERVED", slot.Status)
    }
    if slot.ReservationID == nil || *slot.ReservationID != res.ID {
        t.Errorf("slot reservation = %v, want %d", slot.ReservationID, res.ID)
    }
    a := m.assignments[res.ID]
    if a == nil || a.TableID != 21 {
        t.Fatalf("assignment = %+v, want table 21", a)
    }
    if len(m.confirmed) != 1 || m.confirmed[0].TableLabels[0] != "T1" {
        t.Errorf("confirmed events = %+v, want one with label T1", m.confirmed)
    }
}

func TestConfirmTablesWithoutHolds(t *testing.T) {
    _, svc, date := bookFixture(t)
    _, err := svc.ConfirmTables(context.Background(), ConfirmTablesInput{
        UserID:          guestID,
        RestaurantID:    1,
        Type:            model.ReservationTableOnly,
        ServiceDate:     date,
        ReservationTime: date.Add(18 * time.Hour),
        PartySize:       4,
    })
    if !errors.Is(err, ErrNoActiveHolds) {
        t.Fatalf("error = %v, want ErrNoActiveHolds", err)
    }
}

func TestConfirmTablesActivatesMergeSetAndAssignsPrimary(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)
    held, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21, 22},
        ServiceDate:  date,
        Start:        start,
        PartySize:    9,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }

    msID := uint64(10)
    res, err := svc.ConfirmTables(context.Background(), ConfirmTablesInput{
        UserID:             guestID,
        RestaurantID:       1,
        Type:               model.ReservationBuffetAndTable,
        MealServiceID:      &msID,
        ServiceDate:        date,
        ReservationTime:    start,
        PartySize:          9,
        TotalAmountCents:   72000,
        AdvanceAmountCents: 18000,
    })
    if err != nil {
        t.Fatalf("ConfirmTables: %v", err)
    }

    set := m.sets[*held.TableSetID]
    if set.Status != model.TableSetActive {
        t.Errorf("set status = %s, want ACTIVE", set.Status)
    }
    if set.ReservationID == nil || *set.ReservationID != res.ID {
        t.Errorf("set reservation = %v, want %d", set.ReservationID, res.ID)
    }
    a := m.assignments[res.ID]
    if a == nil || a.TableID != 22 {
        t.Fatalf("assignment = %+v, want primary table 22", a)
    }
    // Buffet seats were reserved alongside the tables.
    rec := m.capacity[capKey(1, 10, date)]
    if rec.BookedSeats != 9 {
        t.Errorf("booked seats = %d, want 9", rec.BookedSeats)
    }
}

func TestReleaseHoldsDissolvesPendingSet(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    held, err := svc.HoldTables(context.Background(), HoldTablesInput{
        UserID:       guestID,
        RestaurantID: 1,
        TableIDs:     []uint64{21, 22},
        ServiceDate:  date,
        Start:        start,
        PartySize:    9,
    })
    if err != nil {
        t.Fatalf("HoldTables: %v", err)
    }

    released, err := svc.ReleaseHolds(context.Background(), guestID, 1, date)
    if err != nil {
        t.Fatalf("ReleaseHolds: %v", err)
    }
    if released != 2 {
        t.Errorf("released = %d, want 2", released)
    }
    for _, slotID := range held.SlotIDs {
        if got := m.slots[slotID].Status; got != model.SlotAvailable {
            t.Errorf("slot %d status = %s, want AVAILABLE", slotID, got)
        }
    }
    if got := m.sets[*held.TableSetID].Status; got != model.TableSetDissolved {
        t.Errorf("set status = %s, want DISSOLVED", got)
    }
}

func TestAvailabilityReflectsSweptHolds(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    slot, err := m.FindOrCreate(context.Background(), 21, date, start, nil)
    if err != nil {
        t.Fatalf("seed slot: %v", err)
    }
    if err := m.Hold(context.Background(), slot.ID, 777, bookNow.Add(-time.Minute), false); err != nil {
        t.Fatalf("seed hold: %v", err)
    }

    result, err := svc.Availability(context.Background(), 1, date)
    if err != nil {
        t.Fatalf("Availability: %v", err)
    }
    if len(result.Capacity) != 1 {
        t.Errorf("capacity records = %d, want 1", len(result.Capacity))
    }
    for _, table := range result.Tables {
        for _, s := range table.Slots {
            if s.ID == slot.ID && s.Status != model.SlotAvailable {
                t.Errorf("expired hold still visible: slot %d status %s", s.ID, s.Status)
            }
        }
    }
}

func TestPopulateCapacity(t *testing.T) {
    m, svc, _ := bookFixture(t)
    from := bookNow.AddDate(0, 0, 10)

    created, err := svc.PopulateCapacity(context.Background(), 1, managerID, from, 7, 40)
    if err != nil {
        t.Fatalf("PopulateCapacity: %v", err)
    }
    if created != 7 { // one active meal service, seven days
        t.Errorf("created = %d, want 7", created)
    }

    // Re-running skips existing days.
    created, err = svc.PopulateCapacity(context.Background(), 1, managerID, from, 7, 40)
    if err != nil {
        t.Fatalf("second PopulateCapacity: %v", err)
    }
    if created != 0 {
        t.Errorf("second run created = %d, want 0", created)
    }

    if _, err := svc.PopulateCapacity(context.Background(), 1, guestID, from, 7, 40); !errors.Is(err, repository.ErrForbidden) {
        t.Fatalf("non-owner error = %v, want ErrForbidden", err)
    }
    _ = m
}

func TestDisableDayRefusesBookedDays(t *testing.T) {
    m, svc, date := bookFixture(t)
    m.capacity[capKey(1, 10, date)].BookedSeats = 3

    disabled, err := svc.DisableDay(context.Background(), 1, managerID, 10, date)
    if err != nil {
        t.Fatalf("DisableDay: %v", err)
    }
    if disabled {
        t.Error("disabled a day with booked seats")
    }

    m.capacity[capKey(1, 10, date)].BookedSeats = 0
    disabled, err = svc.DisableDay(context.Background(), 1, managerID, 10, date)
    if err != nil {
        t.Fatalf("DisableDay: %v", err)
    }
    if !disabled {
        t.Error("could not disable an empty day")
    }
}

func TestSetSlotStatus(t *testing.T) {
    m, svc, date := bookFixture(t)
    start := date.Add(18 * time.Hour)

    slot, err := svc.SetSlotStatus(context.Background(), managerID, 1, 21, date, start, nil, model.SlotBlocked)
    if err != nil {
        t.Fatalf("block: %v", err)
    }
    if slot.Status != model.SlotBlocked {
        t.Errorf("status = %s, want BLOCKED", slot.Status)
    }

    slot, err = svc.SetSlotStatus(context.Background(), managerID, 1, 21, date, start, nil, model.SlotAvailable)
    if err != nil {
        t.Fatalf("unblock: %v", err)
    }
    if slot.Status != model.SlotAvailable {
        t.Errorf("status = %s, want AVAILABLE", slot.Status)
    }

    if _, err := svc.SetSlotStatus(context.Background(), guestID, 1, 21, date, start, nil, model.SlotBlocked); !errors.Is(err, repository.ErrForbidden) {
        t.Fatalf("non-owner error = %v, want ErrForbidden", err)
    }
    _ = m
}

func TestOccupiedDuring(t *testing.T) {
    start := bookNow
    end := bookNow.Add(2 * time.Hour)
    dwell := 90 * time.Minute
    windows := []repository.OccupancyWindow{{ReservationID: 1, Start: start, End: &end}}

    cases := []struct {
        name  string
        start time.Time
        want  bool
    }{
        {"overlapping the booking itself", start.Add(time.Hour), true},
        {"inside the dwell tail", end.Add(time.Hour), true},
        {"at the dwell boundary", end.Add(dwell), false},
        {"well before", start.Add(-3 * time.Hour), false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if got := occupiedDuring(windows, tc.start, nil, dwell); got != tc.want {
                t.Errorf("occupiedDuring(%v) = %v, want %v", tc.start, got, tc.want)
            }
        })
    }
}
