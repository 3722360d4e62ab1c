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

var cancelNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const (
    guestID   = uint64(42)
    managerID = uint64(100)
)

// cancelFixture seeds a restaurant with one dinner service, a generous
// refund policy and a seeded capacity day, then returns the store and a
// cancellation service pinned to cancelNow.
func cancelFixture(t *testing.T) (*memStore, *CancellationService) {
    t.Helper()
    m := newMemStore()
    m.restaurants[1] = model.Restaurant{ID: 1, OwnerID: managerID, Name: "Smörgåsbord", IsActive: true}
    m.mealServices[10] = model.MealService{ID: 10, RestaurantID: 1, Name: "Dinner", MealType: "DINNER", IsActive: true}

    threshold := uint32(720)
    pct := uint32(50)
    m.refundPolicies = []model.RefundPolicy{{
        ID:                         7,
        RestaurantID:               1,
        MealType:                   "DINNER",
        AllowedRefundTypes:         "FULL,PARTIAL",
        FullRefundBeforeMinutes:    1440,
        PartialRefundBeforeMinutes: &threshold,
        PartialRefundPercentage:    &pct,
        IsActive:                   true,
    }}

    date := cancelNow.AddDate(0, 0, 2)
    if _, err := m.InsertIgnore(context.Background(), 1, 10, date, 50); err != nil {
        t.Fatalf("seed capacity: %v", err)
    }
    return m, newTestCancellation(m, clock.NewFixed(cancelNow))
}

func seedBuffetReservation(t *testing.T, m *memStore, bookedSeats uint32) *model.Reservation {
    t.Helper()
    date := cancelNow.AddDate(0, 0, 2)
    msID := uint64(10)
    res := &model.Reservation{
        UserID:             guestID,
        RestaurantID:       1,
        MealServiceID:      &msID,
        MealType:           "DINNER",
        Type:               model.ReservationBuffetOnly,
        ServiceDate:        date,
        ReservationTime:    date,
        PartySize:          4,
        Status:             model.ReservationConfirmed,
        TotalAmountCents:   80000,
        AdvanceAmountCents: 20000,
    }
    if err := m.Create(context.Background(), res); err != nil {
        t.Fatalf("seed reservation: %v", err)
    }
    rec := m.capacity[capKey(1, 10, date)]
    rec.BookedSeats = bookedSeats
    return res
}

func TestCancelBuffetFullRefund(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)

    result, err := svc.Cancel(context.Background(), CancelInput{
        ReservationID: res.ID,
        RequestedByID: guestID,
        RequestedBy:   model.RoleGuest,
        Reason:        "change of plans",
    })
    if err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if result.Window != string(model.WindowFree) {
        t.Errorf("window = %s, want FREE", result.Window)
    }
    if result.RefundAmountCents != 20000 {
        t.Errorf("refund = %d, want 20000", result.RefundAmountCents)
    }
    if got := m.reservations[res.ID].Status; got != model.ReservationCancelled {
        t.Errorf("reservation status = %s, want CANCELLED", got)
    }
    if m.serializableTxs != 1 {
        t.Errorf("serializable transactions = %d, want 1", m.serializableTxs)
    }

    rec := m.capacity[capKey(1, 10, res.ServiceDate)]
    if rec.BookedSeats != 0 {
        t.Errorf("booked seats after release = %d, want 0", rec.BookedSeats)
    }
    if len(m.cancellations) != 1 {
        t.Fatalf("cancellation requests = %d, want 1", len(m.cancellations))
    }
    req := m.cancellations[0]
    if req.Status != model.CancellationApprovedPendingRefund {
        t.Errorf("request status = %s, want APPROVED_PENDING_REFUND", req.Status)
    }
    if len(m.refunds) != 1 || m.refunds[0].AmountCents != 20000 {
        t.Errorf("refund transactions = %+v, want one of 20000", m.refunds)
    }
    if len(m.cancelled) != 1 {
        t.Errorf("cancelled events = %d, want 1", len(m.cancelled))
    }
}

func TestCancelTwiceReturnsAlreadyCancelled(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)
    in := CancelInput{ReservationID: res.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest}

    if _, err := svc.Cancel(context.Background(), in); err != nil {
        t.Fatalf("first Cancel: %v", err)
    }
    if _, err := svc.Cancel(context.Background(), in); !errors.Is(err, ErrAlreadyCancelled) {
        t.Fatalf("second Cancel error = %v, want ErrAlreadyCancelled", err)
    }
    if len(m.cancellations) != 1 {
        t.Errorf("cancellation requests = %d, want exactly 1", len(m.cancellations))
    }
}

func TestCancelBlockedByPendingRequest(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)
    m.cancellations = append(m.cancellations, &model.CancellationRequest{
        ReservationID: res.ID,
        Status:        model.CancellationPendingReview,
    })

    _, err := svc.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if !errors.Is(err, ErrPendingCancellationExists) {
        t.Fatalf("error = %v, want ErrPendingCancellationExists", err)
    }
}

func TestCancelOwnershipEnforcedForGuests(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)

    _, err := svc.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: 999, RequestedBy: model.RoleGuest})
    if !errors.Is(err, repository.ErrForbidden) {
        t.Fatalf("guest error = %v, want ErrForbidden", err)
    }

    // A manager may cancel on the guest's behalf.
    if _, err := svc.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: managerID, RequestedBy: model.RoleManager}); err != nil {
        t.Fatalf("manager Cancel: %v", err)
    }
}

func TestCancelRejectsPastAndTerminalReservations(t *testing.T) {
    m, svc := cancelFixture(t)

    past := seedBuffetReservation(t, m, 4)
    m.reservations[past.ID].ReservationTime = cancelNow.Add(-time.Hour)
    _, err := svc.Cancel(context.Background(), CancelInput{ReservationID: past.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if !errors.Is(err, ErrReservationInPast) {
        t.Fatalf("past reservation error = %v, want ErrReservationInPast", err)
    }

    done := seedBuffetReservation(t, m, 8)
    m.reservations[done.ID].Status = model.ReservationCompleted
    _, err = svc.Cancel(context.Background(), CancelInput{ReservationID: done.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if !errors.Is(err, ErrNotCancellable) {
        t.Fatalf("completed reservation error = %v, want ErrNotCancellable", err)
    }
}

func TestCancelDissolvesMergeSetAndRestoresSnapshot(t *testing.T) {
    m, svc := cancelFixture(t)
    date := cancelNow.AddDate(0, 0, 2)

    res := &model.Reservation{
        UserID:           guestID,
        RestaurantID:     1,
        Type:             model.ReservationTableOnly,
        ServiceDate:      date,
        ReservationTime:  date,
        PartySize:        10,
        Status:           model.ReservationConfirmed,
        TotalAmountCents: 5000,
    }
    if err := m.Create(context.Background(), res); err != nil {
        t.Fatalf("seed reservation: %v", err)
    }
    resID := res.ID
    m.slots[201] = &model.TableSlot{ID: 201, TableID: 21, SlotDate: date, StartTime: date, Status: model.SlotReserved, ReservationID: &resID}
    m.slots[202] = &model.TableSlot{ID: 202, TableID: 22, SlotDate: date, StartTime: date, Status: model.SlotReserved, ReservationID: &resID}
    m.sets[300] = &model.TableSet{
        ID:               300,
        ReservationID:    &resID,
        TableIDs:         []uint64{21, 22},
        SlotIDs:          []uint64{201, 202},
        PrimaryTableID:   21,
        OriginalStatuses: map[uint64]model.SlotStatus{202: model.SlotBlocked},
        Status:           model.TableSetActive,
        CombinedCapacity: 12,
    }

    result, err := svc.Cancel(context.Background(), CancelInput{ReservationID: resID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if got := m.slots[201].Status; got != model.SlotAvailable {
        t.Errorf("primary slot status = %s, want AVAILABLE", got)
    }
    // The secondary table was BLOCKED before the merge; dissolution must
    // not quietly make it bookable.
    if got := m.slots[202].Status; got != model.SlotBlocked {
        t.Errorf("secondary slot status = %s, want BLOCKED", got)
    }
    if got := m.sets[300].Status; got != model.TableSetDissolved {
        t.Errorf("set status = %s, want DISSOLVED", got)
    }
    if result.MergedTableCount != 2 {
        t.Errorf("merged table count = %d, want 2", result.MergedTableCount)
    }
    if len(result.ReleasedSlotIDs) != 2 {
        t.Errorf("released slots = %v, want both members", result.ReleasedSlotIDs)
    }
}

func TestCancelRecordsCapacityUnderflowWithoutFailing(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 2) // fewer booked seats than the party

    _, err := svc.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if len(m.cancellations) != 1 {
        t.Fatalf("cancellation requests = %d, want 1", len(m.cancellations))
    }
    if m.cancellations[0].ReleaseNotes == nil {
        t.Error("release notes not recorded for capacity underflow")
    }
    if got := m.reservations[res.ID].Status; got != model.ReservationCancelled {
        t.Errorf("reservation status = %s, want CANCELLED", got)
    }
}

func TestCancelNoRefundSkipsRefundTransaction(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)
    m.reservations[res.ID].AdvanceAmountCents = 0

    result, err := svc.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest})
    if err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if result.RefundAmountCents != 0 {
        t.Errorf("refund = %d, want 0", result.RefundAmountCents)
    }
    if m.cancellations[0].Status != model.CancellationApprovedNoRefund {
        t.Errorf("request status = %s, want APPROVED_NO_REFUND", m.cancellations[0].Status)
    }
    if len(m.refunds) != 0 {
        t.Errorf("refund transactions = %d, want none", len(m.refunds))
    }
}

func TestQuoteDoesNotMutate(t *testing.T) {
    m, svc := cancelFixture(t)
    res := seedBuffetReservation(t, m, 4)

    q, err := svc.Quote(context.Background(), res.ID, guestID, model.RoleGuest)
    if err != nil {
        t.Fatalf("Quote: %v", err)
    }
    if q.Window != model.WindowFree || q.AmountCents != 20000 {
        t.Errorf("quote = %+v, want FREE 20000", q)
    }
    if got := m.reservations[res.ID].Status; got != model.ReservationConfirmed {
        t.Errorf("reservation status changed to %s", got)
    }
    if len(m.cancellations) != 0 {
        t.Errorf("quote created %d cancellation requests", len(m.cancellations))
    }

    if _, err := svc.Quote(context.Background(), res.ID, 999, model.RoleGuest); !errors.Is(err, repository.ErrForbidden) {
        t.Errorf("foreign quote error = %v, want ErrForbidden", err)
    }
}

// A full day in the life of a capacity record: 10 of 50 seats taken, a
// party of four books, a party of forty is refused, and cancelling the
// four-seat booking returns the ledger to where it started.
func TestBuffetBookThenCancelRestoresCapacity(t *testing.T) {
    m, cancels := cancelFixture(t)
    bookings := newTestBooking(m, clock.NewFixed(cancelNow))
    date := cancelNow.AddDate(0, 0, 2)

    rec := m.capacity[capKey(1, 10, date)]
    rec.BookedSeats = 10

    in := BookBuffetInput{
        UserID:             guestID,
        RestaurantID:       1,
        MealServiceID:      10,
        ServiceDate:        date,
        ReservationTime:    date,
        PartySize:          4,
        TotalAmountCents:   80000,
        AdvanceAmountCents: 20000,
    }
    res, err := bookings.BookBuffet(context.Background(), in)
    if err != nil {
        t.Fatalf("BookBuffet: %v", err)
    }
    if rec.BookedSeats != 14 {
        t.Fatalf("booked seats after booking = %d, want 14", rec.BookedSeats)
    }

    in.UserID = 43
    in.PartySize = 40
    if _, err := bookings.BookBuffet(context.Background(), in); !errors.Is(err, repository.ErrCapacityExceeded) {
        t.Fatalf("oversized party error = %v, want ErrCapacityExceeded", err)
    }
    if rec.BookedSeats != 14 {
        t.Fatalf("booked seats after refusal = %d, want 14", rec.BookedSeats)
    }

    if _, err := cancels.Cancel(context.Background(), CancelInput{ReservationID: res.ID, RequestedByID: guestID, RequestedBy: model.RoleGuest}); err != nil {
        t.Fatalf("Cancel: %v", err)
    }
    if rec.BookedSeats != 10 {
        t.Errorf("booked seats after cancel = %d, want 10", rec.BookedSeats)
    }
}
