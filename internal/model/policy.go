package model

import (
    "strings"
    "time"
)

// Refund types a policy may allow.
const (
    RefundTypeFull    = "FULL"
    RefundTypePartial = "PARTIAL"
)

// RefundPolicy is restaurant-configured refund behaviour.  Buffet
// reservations are matched on MealType; table reservations consult the
// first active policy irrespective of meal type.
//
// Fields:
//  ID                        – primary key identifier.
//  RestaurantID              – owning restaurant.
//  MealType                  – meal type the policy covers ("" = any).
//  AllowedRefundTypes        – comma separated subset of FULL,PARTIAL.
//  FullRefundBeforeMinutes   – minutes before the reservation at or
//                              beyond which the refund is free.
//  PartialRefundBeforeMinutes – partial tier threshold (nil = partial
//                              tier not configured).
//  PartialRefundPercentage   – percentage granted in the partial tier.
//  IsActive                  – whether the policy is consulted.
type RefundPolicy struct {
    ID                         uint64    // refund_policies.id
    RestaurantID               uint64    // refund_policies.restaurant_id
    MealType                   string    // refund_policies.meal_type
    AllowedRefundTypes         string    // refund_policies.allowed_refund_types
    FullRefundBeforeMinutes    uint32    // refund_policies.full_refund_before_minutes
    PartialRefundBeforeMinutes *uint32   // refund_policies.partial_refund_before_minutes (nullable)
    PartialRefundPercentage    *uint32   // refund_policies.partial_refund_percentage (nullable)
    IsActive                   bool      // refund_policies.is_active
    CreatedAt                  time.Time // refund_policies.created_at
    UpdatedAt                  time.Time // refund_policies.updated_at
}

// Allows reports whether the policy permits the given refund type.
func (p RefundPolicy) Allows(refundType string) bool {
    for _, t := range strings.Split(p.AllowedRefundTypes, ",") {
        if strings.TrimSpace(t) == refundType {
            return true
        }
    }
    return false
}

// PartialConfigured reports whether both partial threshold and
// percentage are present; the partial tier is skipped otherwise.
func (p RefundPolicy) PartialConfigured() bool {
    return p.PartialRefundBeforeMinutes != nil && p.PartialRefundPercentage != nil
}

// BusinessPolicy carries restaurant-level switches that override
// refund policies.  When any active business policy disables refunds,
// every cancellation lands in the NO_REFUND tier and the blocking
// policy ID is recorded on the cancellation request.
type BusinessPolicy struct {
    ID              uint64    // business_policies.id
    RestaurantID    uint64    // business_policies.restaurant_id
    IsRefundAllowed bool      // business_policies.is_refund_allowed
    IsActive        bool      // business_policies.is_active
    CreatedAt       time.Time // business_policies.created_at
    UpdatedAt       time.Time // business_policies.updated_at
}
