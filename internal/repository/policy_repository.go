package repository

import (
    "context"
    "database/sql"

    "github.com/dinebook/table-reservation/internal/model"
)

// PolicyRepo reads the refund and business policies a restaurant has
// configured.  Policies are consulted at cancellation time only; the
// repo exposes no writes because policy management is done out of band.
type PolicyRepo struct {
    db *sql.DB
}

// NewPolicyRepo returns a PolicyRepo bound to the given database.
func NewPolicyRepo(db *sql.DB) *PolicyRepo { return &PolicyRepo{db: db} }

// ListActiveRefundPolicies returns the restaurant's active refund
// policies ordered by ID, oldest first.  The ordering matters: table
// reservations take the first active policy regardless of meal type.
func (r *PolicyRepo) ListActiveRefundPolicies(ctx context.Context, restaurantID uint64) ([]model.RefundPolicy, error) {
    const query = `SELECT id, restaurant_id, COALESCE(meal_type, ''), allowed_refund_types,
                          full_refund_before_minutes, partial_refund_before_minutes, partial_refund_percentage,
                          is_active, created_at, updated_at
                   FROM refund_policies
                   WHERE restaurant_id = ? AND is_active = 1
                   ORDER BY id`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, restaurantID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.RefundPolicy
    for rows.Next() {
        var (
            p          model.RefundPolicy
            partialMin sql.NullInt64
            partialPct sql.NullInt64
        )
        if err := rows.Scan(&p.ID, &p.RestaurantID, &p.MealType, &p.AllowedRefundTypes,
            &p.FullRefundBeforeMinutes, &partialMin, &partialPct,
            &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
            return nil, err
        }
        if partialMin.Valid {
            v := uint32(partialMin.Int64)
            p.PartialRefundBeforeMinutes = &v
        }
        if partialPct.Valid {
            v := uint32(partialPct.Int64)
            p.PartialRefundPercentage = &v
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// ListActiveBusinessPolicies returns the restaurant's active business
// policies.  Any of them with refunds disabled forces the NO_REFUND
// tier for every cancellation at that restaurant.
func (r *PolicyRepo) ListActiveBusinessPolicies(ctx context.Context, restaurantID uint64) ([]model.BusinessPolicy, error) {
    const query = `SELECT id, restaurant_id, is_refund_allowed, is_active, created_at, updated_at
                   FROM business_policies
                   WHERE restaurant_id = ? AND is_active = 1
                   ORDER BY id`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, restaurantID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.BusinessPolicy
    for rows.Next() {
        var p model.BusinessPolicy
        if err := rows.Scan(&p.ID, &p.RestaurantID, &p.IsRefundAllowed, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}
