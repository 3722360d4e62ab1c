package service

import (
    "context"
    "time"

    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/queue"
    "github.com/dinebook/table-reservation/internal/repository"
)

// The services depend on narrow store interfaces rather than the
// concrete repositories so tests can substitute in-memory fakes. The
// *repository types satisfy these directly; repository.Store satisfies
// TxRunner.

// TxRunner opens the transactions the services compose store calls in.
type TxRunner interface {
    WithTx(ctx context.Context, fn func(ctx context.Context) error) error
    WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReservationStore is the reservation and assignment persistence the
// services need.
type ReservationStore interface {
    Create(ctx context.Context, res *model.Reservation) error
    GetByID(ctx context.Context, id uint64) (model.Reservation, error)
    GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error)
    UpdateStatusGuarded(ctx context.Context, id uint64, from, to model.ReservationStatus) error
    CreateAssignment(ctx context.Context, a *model.TableAssignment) error
    GetAssignment(ctx context.Context, reservationID uint64) (*model.TableAssignment, error)
    DeleteAssignment(ctx context.Context, reservationID uint64) error
}

// SlotStore is the table slot state machine persistence.
type SlotStore interface {
    GetByID(ctx context.Context, slotID uint64) (model.TableSlot, error)
    FindOrCreate(ctx context.Context, tableID uint64, date, start time.Time, end *time.Time) (model.TableSlot, error)
    Hold(ctx context.Context, slotID, userID uint64, expiresAt time.Time, allowBlocked bool) error
    Confirm(ctx context.Context, slotID, reservationID uint64) error
    Release(ctx context.Context, slotID uint64) error
    RestoreStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error
    SetAdminStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error
    SweepExpiredHolds(ctx context.Context, restaurantID uint64, now time.Time) (int, error)
    ListForDate(ctx context.Context, tableIDs []uint64, date time.Time) ([]model.TableSlot, error)
    ActiveHoldSlotIDs(ctx context.Context, userID, restaurantID uint64, date, now time.Time) ([]uint64, error)
    DeleteHoldsByUser(ctx context.Context, userID, restaurantID uint64, date time.Time) ([]uint64, error)
    ListOccupancies(ctx context.Context, tableID uint64, date time.Time) ([]repository.OccupancyWindow, error)
}

// SetStore is the merge set persistence.
type SetStore interface {
    Create(ctx context.Context, set *model.TableSet) error
    GetByID(ctx context.Context, id uint64) (model.TableSet, error)
    FindLiveByReservation(ctx context.Context, reservationID uint64) (*model.TableSet, error)
    FindPendingBySlot(ctx context.Context, slotID uint64) (*model.TableSet, error)
    Activate(ctx context.Context, setID, reservationID uint64) error
    MarkDissolved(ctx context.Context, setID, dissolvedBy uint64, at time.Time) error
}

// CapacityStore is the buffet capacity ledger persistence.
type CapacityStore interface {
    Reserve(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error
    Release(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error
    Get(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (model.CapacityRecord, error)
    ListByDate(ctx context.Context, restaurantID uint64, date time.Time) ([]model.CapacityRecord, error)
    InsertIgnore(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, totalSeats uint32) (bool, error)
    Disable(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (bool, error)
}

// CancellationStore persists cancellation requests and refund
// transactions.
type CancellationStore interface {
    HasPending(ctx context.Context, reservationID uint64) (bool, error)
    CreateRequest(ctx context.Context, req *model.CancellationRequest) error
    CreateRefundTransaction(ctx context.Context, t *model.RefundTransaction) error
}

// PolicyStore reads refund and business policies.
type PolicyStore interface {
    ListActiveRefundPolicies(ctx context.Context, restaurantID uint64) ([]model.RefundPolicy, error)
    ListActiveBusinessPolicies(ctx context.Context, restaurantID uint64) ([]model.BusinessPolicy, error)
}

// RestaurantStore reads venue structure.
type RestaurantStore interface {
    GetByID(ctx context.Context, id uint64) (model.Restaurant, error)
    GetMealService(ctx context.Context, restaurantID, mealServiceID uint64) (model.MealService, error)
    ListActiveMealServices(ctx context.Context, restaurantID uint64) ([]model.MealService, error)
    GetTable(ctx context.Context, restaurantID, tableID uint64) (model.DiningTable, error)
    GetTables(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]model.DiningTable, error)
    ListTablesBySection(ctx context.Context, restaurantID uint64) ([]model.DiningTable, error)
    IsOwner(ctx context.Context, restaurantID, userID uint64) (bool, error)
}

// Events is the outbound event surface. Publishing happens after the
// owning transaction commits and failures are logged, never propagated.
type Events interface {
    ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
    ReservationCancelled(ctx context.Context, ev queue.ReservationCancelledEvent) error
}

// QueueEvents publishes events to RabbitMQ via the queue package.
type QueueEvents struct{}

func (QueueEvents) ReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
    return queue.PublishReservationConfirmed(ctx, ev)
}

func (QueueEvents) ReservationCancelled(ctx context.Context, ev queue.ReservationCancelledEvent) error {
    return queue.PublishReservationCancelled(ctx, ev)
}
