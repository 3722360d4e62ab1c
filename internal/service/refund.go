package service

import (
    "time"

    "github.com/dinebook/table-reservation/internal/model"
)

// RefundQuote is the outcome of evaluating refund policy for one
// cancellation at one instant. A NO_REFUND quote still allows the
// cancellation to proceed; NoRefundReason is informational and is
// recorded on the cancellation request.
type RefundQuote struct {
    Window         model.RefundWindow
    AmountCents    int64
    Percentage     uint32
    NoRefundReason *string
    PolicyID       *uint64
}

func noRefund(reason string, policyID *uint64) RefundQuote {
    r := reason
    return RefundQuote{
        Window:         model.WindowNoRefund,
        AmountCents:    0,
        Percentage:     0,
        NoRefundReason: &r,
        PolicyID:       policyID,
    }
}

// CalculateRefund computes the refund tier and amount for cancelling
// res at instant now. It is a pure function of its inputs.
//
// Precedence, first match wins:
//  1. Nothing was paid: NO_REFUND / NoPaymentCollected.
//  2. An active business policy disables refunds: NO_REFUND /
//     RefundDisabledByPolicy, recording the blocking policy.
//  3. No applicable refund policy: NO_REFUND / RefundPolicyNotFound.
//  4. The policy's FULL tier applies: FREE, 100% of the base.
//  5. The policy's PARTIAL tier applies: PARTIAL, configured percentage.
//  6. Otherwise: NO_REFUND / OutsideRefundWindow.
//
// Table-only reservations consult the first active refund policy
// regardless of meal type; buffet reservations need a policy matching
// their meal type. Minutes until the reservation never go negative: a
// reservation whose time has passed is simply outside every window.
func CalculateRefund(res model.Reservation, refundPolicies []model.RefundPolicy, businessPolicies []model.BusinessPolicy, now time.Time) RefundQuote {
    base := res.RefundableBaseCents()
    if base <= 0 {
        return noRefund(model.ReasonNoPaymentCollected, nil)
    }

    for _, bp := range businessPolicies {
        if bp.IsActive && !bp.IsRefundAllowed {
            id := bp.ID
            return noRefund(model.ReasonRefundDisabledByPolicy, &id)
        }
    }

    policy, found := selectRefundPolicy(res, refundPolicies)
    if !found {
        return noRefund(model.ReasonRefundPolicyNotFound, nil)
    }
    policyID := policy.ID

    minutesUntil := int64(res.ReservationTime.Sub(now) / time.Minute)
    if minutesUntil < 0 {
        minutesUntil = 0
    }

    if policy.Allows(model.RefundTypeFull) && minutesUntil >= int64(policy.FullRefundBeforeMinutes) {
        return RefundQuote{
            Window:      model.WindowFree,
            AmountCents: base,
            Percentage:  100,
            PolicyID:    &policyID,
        }
    }
    if policy.Allows(model.RefundTypePartial) && policy.PartialConfigured() &&
        minutesUntil >= int64(*policy.PartialRefundBeforeMinutes) {
        pct := *policy.PartialRefundPercentage
        return RefundQuote{
            Window:      model.WindowPartial,
            AmountCents: base * int64(pct) / 100,
            Percentage:  pct,
            PolicyID:    &policyID,
        }
    }
    return noRefund(model.ReasonOutsideRefundWindow, &policyID)
}

func selectRefundPolicy(res model.Reservation, policies []model.RefundPolicy) (model.RefundPolicy, bool) {
    for _, p := range policies {
        if !p.IsActive {
            continue
        }
        if res.Type == model.ReservationTableOnly {
            return p, true
        }
        if p.MealType == "" || p.MealType == res.MealType {
            return p, true
        }
    }
    return model.RefundPolicy{}, false
}
