package model

import "time"

// CancellationStatus enumerates cancellation request states.  At most
// one request per reservation may sit in PENDING_REVIEW or
// APPROVED_PENDING_REFUND at any time; that pending request is what
// blocks a second cancellation attempt.
type CancellationStatus string

const (
    CancellationPendingReview         CancellationStatus = "PENDING_REVIEW"
    CancellationApprovedPendingRefund CancellationStatus = "APPROVED_PENDING_REFUND"
    CancellationApprovedNoRefund      CancellationStatus = "APPROVED_NO_REFUND"
    CancellationRejected              CancellationStatus = "REJECTED"
    CancellationCancelled             CancellationStatus = "CANCELLED"
)

// RefundWindow is the tier the cancellation fell into relative to the
// reservation time.
type RefundWindow string

const (
    WindowFree     RefundWindow = "FREE"      // full refund
    WindowPartial  RefundWindow = "PARTIAL"   // percentage refund
    WindowNoRefund RefundWindow = "NO_REFUND" // nothing refundable
)

// Informational no-refund reasons.  These are part of the caller
// contract: tests and clients match on these strings, not on message
// wording.
const (
    ReasonNoPaymentCollected     = "NoPaymentCollected"
    ReasonRefundDisabledByPolicy = "RefundDisabledByPolicy"
    ReasonOutsideRefundWindow    = "OutsideRefundWindow"
    ReasonRefundPolicyNotFound   = "RefundPolicyNotFound"
)

// CancellationRequest is written exactly once per successful
// cancellation flow and records everything the refund pipeline and
// reconciliation need: the tier, amounts, the merge set that was
// dissolved and every slot that was released.
//
// Fields:
//  ID               – primary key identifier.
//  ReservationID    – reservation being cancelled.
//  Status           – request state, see CancellationStatus.
//  WindowType       – refund tier at processing time.
//  RefundAmountCents – granted refund (nil when no refund).
//  RefundPercentage – percentage applied (100 for FREE, 0 for NO_REFUND).
//  NoRefundReason   – informational reason when WindowType is NO_REFUND.
//  PolicyID         – refund or business policy that decided the outcome.
//  RequestedBy      – role of the requester (GUEST or MANAGER).
//  RequestedByID    – user ID of the requester.
//  ReasonCategory   – free-form category supplied by the requester.
//  TableSetID       – merge set dissolved by this cancellation, if any.
//  MergedTableCount – number of tables in that set.
//  ReleasedSlotIDs  – every slot returned to the pool (JSON array).
//  ReleaseNotes     – bookkeeping anomalies (e.g. capacity underflow)
//                     surfaced for investigation without failing the flow.
type CancellationRequest struct {
    ID                uint64             // cancellation_requests.id
    ReservationID     uint64             // cancellation_requests.reservation_id
    Status            CancellationStatus // cancellation_requests.status
    WindowType        RefundWindow       // cancellation_requests.window_type
    RefundAmountCents *int64             // cancellation_requests.refund_amount_cents (nullable)
    RefundPercentage  uint32             // cancellation_requests.refund_percentage
    NoRefundReason    *string            // cancellation_requests.no_refund_reason (nullable)
    PolicyID          *uint64            // cancellation_requests.policy_id (nullable)
    RequestedBy       string             // cancellation_requests.requested_by
    RequestedByID     uint64             // cancellation_requests.requested_by_id
    ReasonCategory    string             // cancellation_requests.reason_category
    TableSetID        *uint64            // cancellation_requests.table_set_id (nullable)
    MergedTableCount  uint32             // cancellation_requests.merged_table_count
    ReleasedSlotIDs   []uint64           // cancellation_requests.released_slot_ids (JSON)
    ReleaseNotes      *string            // cancellation_requests.release_notes (nullable)
    ProcessedAt       time.Time          // cancellation_requests.processed_at
    ProcessedBy       uint64             // cancellation_requests.processed_by
    CreatedAt         time.Time          // cancellation_requests.created_at
}

// Pending reports whether this request blocks further cancellation
// attempts on its reservation.
func (s CancellationStatus) Pending() bool {
    return s == CancellationPendingReview || s == CancellationApprovedPendingRefund
}

// RefundTransactionStatus values for refund_transactions.status.
const RefundPending = "PENDING"

// RefundTransaction is created alongside an approved cancellation
// whenever the granted refund amount is positive.  It starts PENDING
// and is picked up by the (out of scope) payout pipeline.
type RefundTransaction struct {
    ID                    uint64    // refund_transactions.id
    CancellationRequestID uint64    // refund_transactions.cancellation_request_id
    ReservationID         uint64    // refund_transactions.reservation_id
    AmountCents           int64     // refund_transactions.amount_cents
    Reason                string    // refund_transactions.reason
    Status                string    // refund_transactions.status
    CreatedAt             time.Time // refund_transactions.created_at
}
