package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/dinebook/table-reservation/internal/clock"
    "github.com/dinebook/table-reservation/internal/model"
    "github.com/dinebook/table-reservation/internal/queue"
    "github.com/dinebook/table-reservation/internal/repository"
)

// CancellationService runs the cancellation and refund flow. The whole
// flow executes in one SERIALIZABLE transaction that locks the
// reservation row before validating anything, so two concurrent
// cancellations of the same reservation cannot both pass validation.
type CancellationService struct {
    tx            TxRunner
    reservations  ReservationStore
    slots         SlotStore
    sets          SetStore
    capacity      CapacityStore
    cancellations CancellationStore
    policies      PolicyStore
    events        Events
    clock         clock.Clock
}

// NewCancellationService wires a CancellationService.
func NewCancellationService(tx TxRunner, reservations ReservationStore, slots SlotStore, sets SetStore, capacity CapacityStore, cancellations CancellationStore, policies PolicyStore, events Events, clk clock.Clock) *CancellationService {
    return &CancellationService{
        tx:            tx,
        reservations:  reservations,
        slots:         slots,
        sets:          sets,
        capacity:      capacity,
        cancellations: cancellations,
        policies:      policies,
        events:        events,
        clock:         clk,
    }
}

// CancelInput identifies the reservation to cancel and who is asking.
type CancelInput struct {
    ReservationID uint64
    RequestedByID uint64
    RequestedBy   string // GUEST or MANAGER
    Reason        string
}

// CancelResult reports the processed cancellation back to the caller.
type CancelResult struct {
    RequestID         uint64   `json:"request_id"`
    Window            string   `json:"window_type"`
    RefundAmountCents int64    `json:"refund_amount_cents"`
    RefundPercentage  uint32   `json:"refund_percentage"`
    NoRefundReason    *string  `json:"no_refund_reason,omitempty"`
    ReleasedSlotIDs   []uint64 `json:"released_slot_ids"`
    MergedTableCount  uint32   `json:"merged_table_count"`
}

// Quote evaluates the refund the caller would receive right now without
// changing anything. Guests may only quote their own reservations.
func (s *CancellationService) Quote(ctx context.Context, reservationID, userID uint64, role string) (RefundQuote, error) {
    res, err := s.reservations.GetByID(ctx, reservationID)
    if err != nil {
        return RefundQuote{}, err
    }
    if role == model.RoleGuest && res.UserID != userID {
        return RefundQuote{}, repository.ErrForbidden
    }
    refundPolicies, err := s.policies.ListActiveRefundPolicies(ctx, res.RestaurantID)
    if err != nil {
        return RefundQuote{}, err
    }
    businessPolicies, err := s.policies.ListActiveBusinessPolicies(ctx, res.RestaurantID)
    if err != nil {
        return RefundQuote{}, err
    }
    return CalculateRefund(res, refundPolicies, businessPolicies, s.clock.Now()), nil
}

// Cancel processes a cancellation end to end: validates the reservation
// under a row lock, computes the refund, releases every piece of
// inventory the reservation holds (merge set, table slot, buffet
// seats), writes the cancellation request and refund transaction, and
// flips the reservation to CANCELLED. Either all of it commits or none
// of it does; the confirmation event is published only after commit.
func (s *CancellationService) Cancel(ctx context.Context, in CancelInput) (CancelResult, error) {
    var (
        result CancelResult
        res    model.Reservation
    )
    now := s.clock.Now()

    err := s.tx.WithSerializableTx(ctx, func(ctx context.Context) error {
        var err error

        // Lock first, validate after. Everything below sees a stable row.
        res, err = s.reservations.GetForUpdate(ctx, in.ReservationID)
        if err != nil {
            return err
        }
        if in.RequestedBy == model.RoleGuest && res.UserID != in.RequestedByID {
            return repository.ErrForbidden
        }
        if res.Status == model.ReservationCancelled {
            return ErrAlreadyCancelled
        }
        if !res.Status.Cancellable() {
            return ErrNotCancellable
        }
        if !res.ReservationTime.After(now) {
            return ErrReservationInPast
        }
        pending, err := s.cancellations.HasPending(ctx, in.ReservationID)
        if err != nil {
            return err
        }
        if pending {
            return ErrPendingCancellationExists
        }

        refundPolicies, err := s.policies.ListActiveRefundPolicies(ctx, res.RestaurantID)
        if err != nil {
            return err
        }
        businessPolicies, err := s.policies.ListActiveBusinessPolicies(ctx, res.RestaurantID)
        if err != nil {
            return err
        }
        quote := CalculateRefund(res, refundPolicies, businessPolicies, now)

        released, tableSetID, mergedCount, releaseNotes, err := s.releaseInventory(ctx, res, in.RequestedByID, now)
        if err != nil {
            return err
        }

        status := model.CancellationApprovedNoRefund
        var refundAmount *int64
        if quote.AmountCents > 0 {
            status = model.CancellationApprovedPendingRefund
            amount := quote.AmountCents
            refundAmount = &amount
        }
        req := model.CancellationRequest{
            ReservationID:     res.ID,
            Status:            status,
            WindowType:        quote.Window,
            RefundAmountCents: refundAmount,
            RefundPercentage:  quote.Percentage,
            NoRefundReason:    quote.NoRefundReason,
            PolicyID:          quote.PolicyID,
            RequestedBy:       in.RequestedBy,
            RequestedByID:     in.RequestedByID,
            ReasonCategory:    in.Reason,
            TableSetID:        tableSetID,
            MergedTableCount:  mergedCount,
            ReleasedSlotIDs:   released,
            ReleaseNotes:      releaseNotes,
            ProcessedAt:       now,
            ProcessedBy:       in.RequestedByID,
        }
        if err := s.cancellations.CreateRequest(ctx, &req); err != nil {
            return err
        }
        if quote.AmountCents > 0 {
            tr := model.RefundTransaction{
                CancellationRequestID: req.ID,
                ReservationID:         res.ID,
                AmountCents:           quote.AmountCents,
                Reason:                "cancellation refund",
                Status:                model.RefundPending,
            }
            if err := s.cancellations.CreateRefundTransaction(ctx, &tr); err != nil {
                return err
            }
        }
        if err := s.reservations.UpdateStatusGuarded(ctx, res.ID, res.Status, model.ReservationCancelled); err != nil {
            return err
        }

        result = CancelResult{
            RequestID:         req.ID,
            Window:            string(quote.Window),
            RefundAmountCents: quote.AmountCents,
            RefundPercentage:  quote.Percentage,
            NoRefundReason:    quote.NoRefundReason,
            ReleasedSlotIDs:   released,
            MergedTableCount:  mergedCount,
        }
        return nil
    })
    if err != nil {
        return CancelResult{}, err
    }

    reason := ""
    if result.NoRefundReason != nil {
        reason = *result.NoRefundReason
    }
    if err := s.events.ReservationCancelled(ctx, queue.ReservationCancelledEvent{
        ReservationID:     res.ID,
        UserID:            res.UserID,
        RestaurantID:      res.RestaurantID,
        WindowType:        result.Window,
        RefundAmountCents: result.RefundAmountCents,
        RefundPercentage:  result.RefundPercentage,
        NoRefundReason:    reason,
        ReleasedSlotIDs:   result.ReleasedSlotIDs,
        MergedTableCount:  result.MergedTableCount,
        CancelledAt:       now.Format(time.RFC3339),
    }); err != nil {
        log.Printf("cancellation: event publish failed for reservation %d: %v", res.ID, err)
    }
    return result, nil
}

// releaseInventory returns every piece of inventory a reservation
// holds. A reservation with an active merge set dissolves the set:
// secondary slots revert to their snapshotted pre-merge status, the
// primary slot goes back to AVAILABLE. A plain table assignment just
// releases its slot. Buffet seats are decremented from the capacity
// ledger; an underflow there is recorded in the release notes and
// logged but does not abort the cancellation, because refusing to
// cancel over a bookkeeping anomaly would strand the guest.
func (s *CancellationService) releaseInventory(ctx context.Context, res model.Reservation, actorID uint64, now time.Time) (released []uint64, tableSetID *uint64, mergedCount uint32, releaseNotes *string, err error) {
    released = make([]uint64, 0, 2)

    if res.Type.HasTable() {
        set, err := s.sets.FindLiveByReservation(ctx, res.ID)
        if err != nil {
            return nil, nil, 0, nil, err
        }
        if set != nil {
            primary, _ := set.PrimarySlotID()
            for _, slotID := range set.SecondarySlotIDs() {
                if err := s.slots.RestoreStatus(ctx, slotID, set.RestoreStatusFor(slotID)); err != nil {
                    return nil, nil, 0, nil, err
                }
                released = append(released, slotID)
            }
            if primary != 0 {
                if err := s.slots.Release(ctx, primary); err != nil {
                    return nil, nil, 0, nil, err
                }
                released = append(released, primary)
            }
            if err := s.sets.MarkDissolved(ctx, set.ID, actorID, now); err != nil {
                return nil, nil, 0, nil, err
            }
            id := set.ID
            tableSetID = &id
            mergedCount = uint32(len(set.TableIDs))
        } else {
            assignment, err := s.reservations.GetAssignment(ctx, res.ID)
            if err != nil {
                return nil, nil, 0, nil, err
            }
            if assignment != nil {
                if err := s.slots.Release(ctx, assignment.SlotID); err != nil {
                    return nil, nil, 0, nil, err
                }
                released = append(released, assignment.SlotID)
            }
        }
        if err := s.reservations.DeleteAssignment(ctx, res.ID); err != nil {
            return nil, nil, 0, nil, err
        }
    }

    if res.Type.HasBuffet() && res.MealServiceID != nil {
        err := s.capacity.Release(ctx, res.RestaurantID, *res.MealServiceID, res.ServiceDate, res.PartySize)
        if errors.Is(err, repository.ErrReleaseUnderflow) {
            note := fmt.Sprintf("capacity release underflow: restaurant=%d meal_service=%d date=%s party=%d",
                res.RestaurantID, *res.MealServiceID, res.ServiceDate.Format("2006-01-02"), res.PartySize)
            releaseNotes = &note
            log.Printf("cancellation: %s (reservation %d)", note, res.ID)
        } else if err != nil {
            return nil, nil, 0, nil, err
        }
    }
    return released, tableSetID, mergedCount, releaseNotes, nil
}
