package service

import (
    "context"
    "fmt"
    "time"

    "github.com/dinebook/table-reservation/internal/clock"
    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/queue"
    "github.com/dinebook/table-reservation/internal/repository"
)

// memStore is an in-memory stand-in for every store interface the
// services depend on. It mirrors the conditional-update semantics of
// the SQL repositories (zero rows affected becomes the matching
// sentinel error) so the services exercise the same error paths they
// would against MySQL.
type memStore struct {
    nextID uint64

    restaurants  map[uint64]model.Restaurant
    mealServices map[uint64]model.MealService
    tables       map[uint64]model.DiningTable

    reservations map[uint64]*model.Reservation
    assignments  map[uint64]*model.TableAssignment // by reservation ID
    slots        map[uint64]*model.TableSlot
    holds        map[uint64]*model.TableHold // by slot ID
    sets         map[uint64]*model.TableSet
    capacity     map[string]*model.CapacityRecord

    cancellations []*model.CancellationRequest
    refunds       []model.RefundTransaction

    refundPolicies   []model.RefundPolicy
    businessPolicies []model.BusinessPolicy

    confirmed []queue.ReservationConfirmedEvent
    cancelled []queue.ReservationCancelledEvent

    serializableTxs int
}

func newMemStore() *memStore {
    return &memStore{
        restaurants:  make(map[uint64]model.Restaurant),
        mealServices: make(map[uint64]model.MealService),
        tables:       make(map[uint64]model.DiningTable),
        reservations: make(map[uint64]*model.Reservation),
        assignments:  make(map[uint64]*model.TableAssignment),
        slots:        make(map[uint64]*model.TableSlot),
        holds:        make(map[uint64]*model.TableHold),
        sets:         make(map[uint64]*model.TableSet),
        capacity:     make(map[string]*model.CapacityRecord),
    }
}

func (m *memStore) id() uint64 {
    m.nextID++
    return m.nextID
}

func capKey(restaurantID, mealServiceID uint64, date time.Time) string {
    return fmt.Sprintf("%d/%d/%s", restaurantID, mealServiceID, date.Format("2006-01-02"))
}

func sameDay(a, b time.Time) bool {
    return a.Format("2006-01-02") == b.Format("2006-01-02")
}

// TxRunner. The fakes have no transactional rollback; tests that need
// rollback semantics assert on the error, not on partial state.

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
    return fn(ctx)
}

func (m *memStore) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
    m.serializableTxs++
    return fn(ctx)
}

// ReservationStore.

func (m *memStore) Create(ctx context.Context, res *model.Reservation) error {
    res.ID = m.id()
    cp := *res
    m.reservations[res.ID] = &cp
    return nil
}

func (m *memStore) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
    res, ok := m.reservations[id]
    if !ok {
        return model.Reservation{}, repository.ErrNotFound
    }
    return *res, nil
}

func (m *memStore) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
    return m.GetByID(ctx, id)
}

func (m *memStore) UpdateStatusGuarded(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
    res, ok := m.reservations[id]
    if !ok || res.Status != from {
        return repository.ErrStatusConflict
    }
    res.Status = to
    return nil
}

func (m *memStore) CreateAssignment(ctx context.Context, a *model.TableAssignment) error {
    a.ID = m.id()
    cp := *a
    m.assignments[a.ReservationID] = &cp
    return nil
}

func (m *memStore) GetAssignment(ctx context.Context, reservationID uint64) (*model.TableAssignment, error) {
    a, ok := m.assignments[reservationID]
    if !ok {
        return nil, nil
    }
    cp := *a
    return &cp, nil
}

func (m *memStore) DeleteAssignment(ctx context.Context, reservationID uint64) error {
    delete(m.assignments, reservationID)
    return nil
}

// SlotStore.

func (m *memStore) slot(id uint64) (*model.TableSlot, error) {
    s, ok := m.slots[id]
    if !ok {
        return nil, repository.ErrNotFound
    }
    return s, nil
}

func (m *memStore) GetSlot(ctx context.Context, slotID uint64) (model.TableSlot, error) {
    s, err := m.slot(slotID)
    if err != nil {
        return model.TableSlot{}, err
    }
    return *s, nil
}

func (m *memStore) FindOrCreate(ctx context.Context, tableID uint64, date, start time.Time, end *time.Time) (model.TableSlot, error) {
    for _, s := range m.slots {
        if s.TableID == tableID && sameDay(s.SlotDate, date) && s.StartTime.Equal(start) {
            return *s, nil
        }
    }
    s := &model.TableSlot{
        ID:        m.id(),
        TableID:   tableID,
        SlotDate:  date,
        StartTime: start,
        EndTime:   end,
        Status:    model.SlotAvailable,
    }
    m.slots[s.ID] = s
    return *s, nil
}

func (m *memStore) Hold(ctx context.Context, slotID, userID uint64, expiresAt time.Time, allowBlocked bool) error {
    s, err := m.slot(slotID)
    if err != nil {
        return err
    }
    if s.Status != model.SlotAvailable && !(allowBlocked && s.Status == model.SlotBlocked) {
        return repository.ErrSlotUnavailable
    }
    s.Status = model.SlotHeld
    exp := expiresAt
    s.HoldExpiresAt = &exp
    m.holds[slotID] = &model.TableHold{ID: m.id(), SlotID: slotID, UserID: userID, ExpiresAt: expiresAt}
    return nil
}

func (m *memStore) Confirm(ctx context.Context, slotID, reservationID uint64) error {
    s, err := m.slot(slotID)
    if err != nil {
        return err
    }
    if s.Status != model.SlotHeld {
        return repository.ErrSlotNotHeld
    }
    s.Status = model.SlotReserved
    rid := reservationID
    s.ReservationID = &rid
    s.HoldExpiresAt = nil
    delete(m.holds, slotID)
    return nil
}

func (m *memStore) Release(ctx context.Context, slotID uint64) error {
    s, err := m.slot(slotID)
    if err != nil {
        return err
    }
    s.Status = model.SlotAvailable
    s.ReservationID = nil
    s.HoldExpiresAt = nil
    delete(m.holds, slotID)
    return nil
}

func (m *memStore) RestoreStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    s, err := m.slot(slotID)
    if err != nil {
        return err
    }
    s.Status = status
    s.ReservationID = nil
    s.HoldExpiresAt = nil
    delete(m.holds, slotID)
    return nil
}

func (m *memStore) SetAdminStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    s, err := m.slot(slotID)
    if err != nil {
        return err
    }
    if !s.Status.CanTransitionTo(status) {
        return repository.ErrSlotUnavailable
    }
    s.Status = status
    s.ReservationID = nil
    s.HoldExpiresAt = nil
    return nil
}

func (m *memStore) SweepExpiredHolds(ctx context.Context, restaurantID uint64, now time.Time) (int, error) {
    swept := 0
    for slotID, h := range m.holds {
        if h.ExpiresAt.After(now) {
            continue
        }
        if restaurantID != 0 {
            s := m.slots[slotID]
            if t, ok := m.tables[s.TableID]; !ok || t.RestaurantID != restaurantID {
                continue
            }
        }
        if err := m.Release(ctx, slotID); err != nil {
            return swept, err
        }
        swept++
    }
    return swept, nil
}

func (m *memStore) ListForDate(ctx context.Context, tableIDs []uint64, date time.Time) ([]model.TableSlot, error) {
    var out []model.TableSlot
    for _, id := range tableIDs {
        for _, s := range m.slots {
            if s.TableID == id && sameDay(s.SlotDate, date) {
                out = append(out, *s)
            }
        }
    }
    return out, nil
}

func (m *memStore) ActiveHoldSlotIDs(ctx context.Context, userID, restaurantID uint64, date, now time.Time) ([]uint64, error) {
    var out []uint64
    for slotID, h := range m.holds {
        if h.UserID != userID || !h.ExpiresAt.After(now) {
            continue
        }
        s := m.slots[slotID]
        t := m.tables[s.TableID]
        if t.RestaurantID == restaurantID && sameDay(s.SlotDate, date) {
            out = append(out, slotID)
        }
    }
    return out, nil
}

func (m *memStore) DeleteHoldsByUser(ctx context.Context, userID, restaurantID uint64, date time.Time) ([]uint64, error) {
    var out []uint64
    for slotID, h := range m.holds {
        if h.UserID != userID {
            continue
        }
        s := m.slots[slotID]
        t := m.tables[s.TableID]
        if t.RestaurantID == restaurantID && sameDay(s.SlotDate, date) {
            out = append(out, slotID)
            delete(m.holds, slotID)
        }
    }
    return out, nil
}

func (m *memStore) ListOccupancies(ctx context.Context, tableID uint64, date time.Time) ([]repository.OccupancyWindow, error) {
    var out []repository.OccupancyWindow
    for resID, a := range m.assignments {
        if a.TableID != tableID {
            continue
        }
        res := m.reservations[resID]
        if res == nil || !sameDay(res.ServiceDate, date) {
            continue
        }
        if res.Status != model.ReservationConfirmed && res.Status != model.ReservationSeated {
            continue
        }
        out = append(out, repository.OccupancyWindow{
            ReservationID: resID,
            Start:         a.TableStart,
            End:           a.TableEnd,
        })
    }
    return out, nil
}

// SetStore.

func (m *memStore) CreateSet(ctx context.Context, set *model.TableSet) error {
    set.ID = m.id()
    set.Status = model.TableSetPendingMerge
    cp := *set
    m.sets[set.ID] = &cp
    return nil
}

func (m *memStore) GetSet(ctx context.Context, id uint64) (model.TableSet, error) {
    s, ok := m.sets[id]
    if !ok {
        return model.TableSet{}, repository.ErrNotFound
    }
    return *s, nil
}

func (m *memStore) FindLiveByReservation(ctx context.Context, reservationID uint64) (*model.TableSet, error) {
    for _, s := range m.sets {
        if s.Status == model.TableSetActive && s.ReservationID != nil && *s.ReservationID == reservationID {
            cp := *s
            return &cp, nil
        }
    }
    return nil, nil
}

func (m *memStore) FindPendingBySlot(ctx context.Context, slotID uint64) (*model.TableSet, error) {
    for _, s := range m.sets {
        if s.Status != model.TableSetPendingMerge {
            continue
        }
        for _, sid := range s.SlotIDs {
            if sid == slotID {
                cp := *s
                return &cp, nil
            }
        }
    }
    return nil, nil
}

func (m *memStore) Activate(ctx context.Context, setID, reservationID uint64) error {
    s, ok := m.sets[setID]
    if !ok || s.Status != model.TableSetPendingMerge {
        return repository.ErrStatusConflict
    }
    rid := reservationID
    s.ReservationID = &rid
    s.Status = model.TableSetActive
    return nil
}

func (m *memStore) MarkDissolved(ctx context.Context, setID, dissolvedBy uint64, at time.Time) error {
    s, ok := m.sets[setID]
    if !ok {
        return repository.ErrNotFound
    }
    s.Status = model.TableSetDissolved
    by, t := dissolvedBy, at
    s.DissolvedBy = &by
    s.DissolvedAt = &t
    return nil
}

// CapacityStore.

func (m *memStore) Reserve(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    rec, ok := m.capacity[capKey(restaurantID, mealServiceID, date)]
    if !ok || !rec.IsEnabled || rec.BookedSeats+partySize > rec.TotalSeats {
        return repository.ErrCapacityExceeded
    }
    rec.BookedSeats += partySize
    return nil
}

func (m *memStore) ReleaseSeats(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    rec, ok := m.capacity[capKey(restaurantID, mealServiceID, date)]
    if !ok || rec.BookedSeats < partySize {
        return repository.ErrReleaseUnderflow
    }
    rec.BookedSeats -= partySize
    return nil
}

func (m *memStore) GetCapacity(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (model.CapacityRecord, error) {
    rec, ok := m.capacity[capKey(restaurantID, mealServiceID, date)]
    if !ok {
        return model.CapacityRecord{}, repository.ErrNotFound
    }
    return *rec, nil
}

func (m *memStore) ListByDate(ctx context.Context, restaurantID uint64, date time.Time) ([]model.CapacityRecord, error) {
    var out []model.CapacityRecord
    for _, rec := range m.capacity {
        if rec.RestaurantID == restaurantID && sameDay(rec.ServiceDate, date) {
            out = append(out, *rec)
        }
    }
    return out, nil
}

func (m *memStore) InsertIgnore(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, totalSeats uint32) (bool, error) {
    key := capKey(restaurantID, mealServiceID, date)
    if _, ok := m.capacity[key]; ok {
        return false, nil
    }
    m.capacity[key] = &model.CapacityRecord{
        ID:            m.id(),
        RestaurantID:  restaurantID,
        MealServiceID: mealServiceID,
        ServiceDate:   date,
        TotalSeats:    totalSeats,
        IsEnabled:     true,
    }
    return true, nil
}

func (m *memStore) Disable(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (bool, error) {
    rec, ok := m.capacity[capKey(restaurantID, mealServiceID, date)]
    if !ok || !rec.IsEnabled || rec.BookedSeats > 0 {
        return false, nil
    }
    rec.IsEnabled = false
    return true, nil
}

// CancellationStore.

func (m *memStore) HasPending(ctx context.Context, reservationID uint64) (bool, error) {
    for _, req := range m.cancellations {
        if req.ReservationID == reservationID && req.Status.Pending() {
            return true, nil
        }
    }
    return false, nil
}

func (m *memStore) CreateRequest(ctx context.Context, req *model.CancellationRequest) error {
    req.ID = m.id()
    cp := *req
    m.cancellations = append(m.cancellations, &cp)
    return nil
}

func (m *memStore) CreateRefundTransaction(ctx context.Context, t *model.RefundTransaction) error {
    t.ID = m.id()
    m.refunds = append(m.refunds, *t)
    return nil
}

// PolicyStore.

func (m *memStore) ListActiveRefundPolicies(ctx context.Context, restaurantID uint64) ([]model.RefundPolicy, error) {
    var out []model.RefundPolicy
    for _, p := range m.refundPolicies {
        if p.RestaurantID == restaurantID && p.IsActive {
            out = append(out, p)
        }
    }
    return out, nil
}

func (m *memStore) ListActiveBusinessPolicies(ctx context.Context, restaurantID uint64) ([]model.BusinessPolicy, error) {
    var out []model.BusinessPolicy
    for _, p := range m.businessPolicies {
        if p.RestaurantID == restaurantID && p.IsActive {
            out = append(out, p)
        }
    }
    return out, nil
}

// RestaurantStore.

func (m *memStore) GetRestaurant(ctx context.Context, id uint64) (model.Restaurant, error) {
    r, ok := m.restaurants[id]
    if !ok {
        return model.Restaurant{}, repository.ErrNotFound
    }
    return r, nil
}

func (m *memStore) GetMealService(ctx context.Context, restaurantID, mealServiceID uint64) (model.MealService, error) {
    ms, ok := m.mealServices[mealServiceID]
    if !ok || ms.RestaurantID != restaurantID {
        return model.MealService{}, repository.ErrNotFound
    }
    return ms, nil
}

func (m *memStore) ListActiveMealServices(ctx context.Context, restaurantID uint64) ([]model.MealService, error) {
    var out []model.MealService
    for _, ms := range m.mealServices {
        if ms.RestaurantID == restaurantID && ms.IsActive {
            out = append(out, ms)
        }
    }
    return out, nil
}

func (m *memStore) GetTable(ctx context.Context, restaurantID, tableID uint64) (model.DiningTable, error) {
    t, ok := m.tables[tableID]
    if !ok || t.RestaurantID != restaurantID || !t.IsActive {
        return model.DiningTable{}, repository.ErrNotFound
    }
    return t, nil
}

func (m *memStore) GetTables(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]model.DiningTable, error) {
    out := make(map[uint64]model.DiningTable, len(tableIDs))
    for _, id := range tableIDs {
        t, ok := m.tables[id]
        if ok && t.RestaurantID == restaurantID && t.IsActive {
            out[id] = t
        }
    }
    return out, nil
}

func (m *memStore) ListTablesBySection(ctx context.Context, restaurantID uint64) ([]model.DiningTable, error) {
    var out []model.DiningTable
    for _, t := range m.tables {
        if t.RestaurantID == restaurantID && t.IsActive {
            out = append(out, t)
        }
    }
    return out, nil
}

func (m *memStore) IsOwner(ctx context.Context, restaurantID, userID uint64) (bool, error) {
    r, ok := m.restaurants[restaurantID]
    return ok && r.OwnerID == userID, nil
}

// Events.

func (m *memStore) ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
    m.confirmed = append(m.confirmed, ev)
    return nil
}

func (m *memStore) ReservationCancelled(ctx context.Context, ev queue.ReservationCancelledEvent) error {
    m.cancelled = append(m.cancelled, ev)
    return nil
}

// memStore satisfies TxRunner, ReservationStore, CancellationStore,
// PolicyStore and Events directly. The remaining interfaces collide on
// method names (GetByID, Create, Release), so thin wrappers rename.

type fakeSlots struct{ m *memStore }

func (f fakeSlots) GetByID(ctx context.Context, slotID uint64) (model.TableSlot, error) {
    return f.m.GetSlot(ctx, slotID)
}
func (f fakeSlots) FindOrCreate(ctx context.Context, tableID uint64, date, start time.Time, end *time.Time) (model.TableSlot, error) {
    return f.m.FindOrCreate(ctx, tableID, date, start, end)
}
func (f fakeSlots) Hold(ctx context.Context, slotID, userID uint64, expiresAt time.Time, allowBlocked bool) error {
    return f.m.Hold(ctx, slotID, userID, expiresAt, allowBlocked)
}
func (f fakeSlots) Confirm(ctx context.Context, slotID, reservationID uint64) error {
    return f.m.Confirm(ctx, slotID, reservationID)
}
func (f fakeSlots) Release(ctx context.Context, slotID uint64) error {
    return f.m.Release(ctx, slotID)
}
func (f fakeSlots) RestoreStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    return f.m.RestoreStatus(ctx, slotID, status)
}
func (f fakeSlots) SetAdminStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    return f.m.SetAdminStatus(ctx, slotID, status)
}
func (f fakeSlots) SweepExpiredHolds(ctx context.Context, restaurantID uint64, now time.Time) (int, error) {
    return f.m.SweepExpiredHolds(ctx, restaurantID, now)
}
func (f fakeSlots) ListForDate(ctx context.Context, tableIDs []uint64, date time.Time) ([]model.TableSlot, error) {
    return f.m.ListForDate(ctx, tableIDs, date)
}
func (f fakeSlots) ActiveHoldSlotIDs(ctx context.Context, userID, restaurantID uint64, date, now time.Time) ([]uint64, error) {
    return f.m.ActiveHoldSlotIDs(ctx, userID, restaurantID, date, now)
}
func (f fakeSlots) DeleteHoldsByUser(ctx context.Context, userID, restaurantID uint64, date time.Time) ([]uint64, error) {
    return f.m.DeleteHoldsByUser(ctx, userID, restaurantID, date)
}
func (f fakeSlots) ListOccupancies(ctx context.Context, tableID uint64, date time.Time) ([]repository.OccupancyWindow, error) {
    return f.m.ListOccupancies(ctx, tableID, date)
}

type fakeSets struct{ m *memStore }

func (f fakeSets) Create(ctx context.Context, set *model.TableSet) error {
    return f.m.CreateSet(ctx, set)
}
func (f fakeSets) GetByID(ctx context.Context, id uint64) (model.TableSet, error) {
    return f.m.GetSet(ctx, id)
}
func (f fakeSets) FindLiveByReservation(ctx context.Context, reservationID uint64) (*model.TableSet, error) {
    return f.m.FindLiveByReservation(ctx, reservationID)
}
func (f fakeSets) FindPendingBySlot(ctx context.Context, slotID uint64) (*model.TableSet, error) {
    return f.m.FindPendingBySlot(ctx, slotID)
}
func (f fakeSets) Activate(ctx context.Context, setID, reservationID uint64) error {
    return f.m.Activate(ctx, setID, reservationID)
}
func (f fakeSets) MarkDissolved(ctx context.Context, setID, dissolvedBy uint64, at time.Time) error {
    return f.m.MarkDissolved(ctx, setID, dissolvedBy, at)
}

type fakeCapacity struct{ m *memStore }

func (f fakeCapacity) Reserve(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    return f.m.Reserve(ctx, restaurantID, mealServiceID, date, partySize)
}
func (f fakeCapacity) Release(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    return f.m.ReleaseSeats(ctx, restaurantID, mealServiceID, date, partySize)
}
func (f fakeCapacity) Get(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (model.CapacityRecord, error) {
    return f.m.GetCapacity(ctx, restaurantID, mealServiceID, date)
}
func (f fakeCapacity) ListByDate(ctx context.Context, restaurantID uint64, date time.Time) ([]model.CapacityRecord, error) {
    return f.m.ListByDate(ctx, restaurantID, date)
}
func (f fakeCapacity) InsertIgnore(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, totalSeats uint32) (bool, error) {
    return f.m.InsertIgnore(ctx, restaurantID, mealServiceID, date, totalSeats)
}
func (f fakeCapacity) Disable(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (bool, error) {
    return f.m.Disable(ctx, restaurantID, mealServiceID, date)
}

type fakeRestaurants struct{ m *memStore }

func (f fakeRestaurants) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
    return f.m.GetRestaurant(ctx, id)
}
func (f fakeRestaurants) GetMealService(ctx context.Context, restaurantID, mealServiceID uint64) (model.MealService, error) {
    return f.m.GetMealService(ctx, restaurantID, mealServiceID)
}
func (f fakeRestaurants) ListActiveMealServices(ctx context.Context, restaurantID uint64) ([]model.MealService, error) {
    return f.m.ListActiveMealServices(ctx, restaurantID)
}
func (f fakeRestaurants) GetTable(ctx context.Context, restaurantID, tableID uint64) (model.DiningTable, error) {
    return f.m.GetTable(ctx, restaurantID, tableID)
}
func (f fakeRestaurants) GetTables(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]model.DiningTable, error) {
    return f.m.GetTables(ctx, restaurantID, tableIDs)
}
func (f fakeRestaurants) ListTablesBySection(ctx context.Context, restaurantID uint64) ([]model.DiningTable, error) {
    return f.m.ListTablesBySection(ctx, restaurantID)
}
func (f fakeRestaurants) IsOwner(ctx context.Context, restaurantID, userID uint64) (bool, error) {
    return f.m.IsOwner(ctx, restaurantID, userID)
}

func newTestBooking(m *memStore, clk clock.Clock) *BookingService {
    return NewBookingService(m, fakeRestaurants{m}, m, fakeSlots{m}, fakeSets{m}, fakeCapacity{m}, m, clk, 0)
}

func newTestCancellation(m *memStore, clk clock.Clock) *CancellationService {
    return NewCancellationService(m, m, fakeSlots{m}, fakeSets{m}, fakeCapacity{m}, m, m, m, clk)
}
