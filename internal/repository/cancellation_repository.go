package repository

import (
    "context"
    "database/sql"
    "encoding/json"

    "github.com/dinebook/table-reservation/internal/model"
)

// CancellationRepo provides data access to cancellation_requests and
// refund_transactions.  A request row is the audit record of one
// processed cancellation; a transaction row is created alongside it
// whenever the granted refund amount is positive.
type CancellationRepo struct {
    db *sql.DB
}

// NewCancellationRepo returns a CancellationRepo bound to the given database.
func NewCancellationRepo(db *sql.DB) *CancellationRepo { return &CancellationRepo{db: db} }

// HasPending reports whether the reservation already has a cancellation
// request in PENDING_REVIEW or APPROVED_PENDING_REFUND.  Called after
// the reservation row lock is taken, so a concurrent canceller cannot
// slip a second request in between the check and the insert.
func (r *CancellationRepo) HasPending(ctx context.Context, reservationID uint64) (bool, error) {
    var n int
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM cancellation_requests
         WHERE reservation_id = ? AND status IN ('PENDING_REVIEW','APPROVED_PENDING_REFUND')`,
        reservationID).Scan(&n)
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// CreateRequest inserts a cancellation request and populates the
// generated ID on the passed struct.  Released slot IDs are stored as
// a JSON array so reconciliation can replay exactly what was returned
// to the pool.
func (r *CancellationRepo) CreateRequest(ctx context.Context, req *model.CancellationRequest) error {
    slotsJSON, err := json.Marshal(req.ReleasedSlotIDs)
    if err != nil {
        return err
    }
    var (
        refundAmount interface{}
        noRefund     interface{}
        policyID     interface{}
        tableSetID   interface{}
        notes        interface{}
    )
    if req.RefundAmountCents != nil {
        refundAmount = *req.RefundAmountCents
    }
    if req.NoRefundReason != nil {
        noRefund = *req.NoRefundReason
    }
    if req.PolicyID != nil {
        policyID = *req.PolicyID
    }
    if req.TableSetID != nil {
        tableSetID = *req.TableSetID
    }
    if req.ReleaseNotes != nil {
        notes = *req.ReleaseNotes
    }
    result, err := q(ctx, r.db).ExecContext(ctx,
        `INSERT INTO cancellation_requests
         (reservation_id, status, window_type, refund_amount_cents, refund_percentage, no_refund_reason,
          policy_id, requested_by, requested_by_id, reason_category, table_set_id, merged_table_count,
          released_slot_ids, release_notes, processed_at, processed_by)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        req.ReservationID, string(req.Status), string(req.WindowType), refundAmount, req.RefundPercentage,
        noRefund, policyID, req.RequestedBy, req.RequestedByID, req.ReasonCategory, tableSetID,
        req.MergedTableCount, slotsJSON, notes, req.ProcessedAt.UTC(), req.ProcessedBy)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    req.ID = uint64(id)
    return nil
}

// GetRequestByReservation returns the most recent cancellation request
// for a reservation, or nil when none exists.
func (r *CancellationRepo) GetRequestByReservation(ctx context.Context, reservationID uint64) (*model.CancellationRequest, error) {
    var (
        req          model.CancellationRequest
        status       string
        window       string
        refundAmount sql.NullInt64
        noRefund     sql.NullString
        policyID     sql.NullInt64
        tableSetID   sql.NullInt64
        slotsJSON    []byte
        notes        sql.NullString
    )
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, reservation_id, status, window_type, refund_amount_cents, refund_percentage,
                no_refund_reason, policy_id, requested_by, requested_by_id, reason_category,
                table_set_id, merged_table_count, released_slot_ids, release_notes,
                processed_at, processed_by, created_at
         FROM cancellation_requests WHERE reservation_id = ?
         ORDER BY id DESC LIMIT 1`, reservationID).Scan(
        &req.ID, &req.ReservationID, &status, &window, &refundAmount, &req.RefundPercentage,
        &noRefund, &policyID, &req.RequestedBy, &req.RequestedByID, &req.ReasonCategory,
        &tableSetID, &req.MergedTableCount, &slotsJSON, &notes,
        &req.ProcessedAt, &req.ProcessedBy, &req.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    req.Status = model.CancellationStatus(status)
    req.WindowType = model.RefundWindow(window)
    if refundAmount.Valid {
        v := refundAmount.Int64
        req.RefundAmountCents = &v
    }
    if noRefund.Valid {
        s := noRefund.String
        req.NoRefundReason = &s
    }
    if policyID.Valid {
        id := uint64(policyID.Int64)
        req.PolicyID = &id
    }
    if tableSetID.Valid {
        id := uint64(tableSetID.Int64)
        req.TableSetID = &id
    }
    if notes.Valid {
        s := notes.String
        req.ReleaseNotes = &s
    }
    if len(slotsJSON) > 0 {
        if err := json.Unmarshal(slotsJSON, &req.ReleasedSlotIDs); err != nil {
            return nil, err
        }
    }
    return &req, nil
}

// CreateRefundTransaction inserts a PENDING refund transaction and
// populates the generated ID.
func (r *CancellationRepo) CreateRefundTransaction(ctx context.Context, t *model.RefundTransaction) error {
    result, err := q(ctx, r.db).ExecContext(ctx,
        `INSERT INTO refund_transactions (cancellation_request_id, reservation_id, amount_cents, reason, status)
         VALUES (?, ?, ?, ?, ?)`,
        t.CancellationRequestID, t.ReservationID, t.AmountCents, t.Reason, t.Status)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    return nil
}
