package repository

import (
    "context"
    "database/sql"

    "github.com/dinebook/table-reservation/internal/model"
)

// RestaurantRepo provides data access to restaurants, their meal
// services, sections and dining tables.  It is read-mostly; venue
// management writes go through the same repo so ownership checks stay
// in one place.
type RestaurantRepo struct {
    db *sql.DB
}

// NewRestaurantRepo returns a RestaurantRepo bound to the given database.
func NewRestaurantRepo(db *sql.DB) *RestaurantRepo { return &RestaurantRepo{db: db} }

func scanRestaurant(row interface{ Scan(...interface{}) error }) (model.Restaurant, error) {
    var (
        r     model.Restaurant
        dwell sql.NullInt64
    )
    err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &dwell, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
    if err != nil {
        return model.Restaurant{}, err
    }
    if dwell.Valid {
        v := uint32(dwell.Int64)
        r.DwellMinutes = &v
    }
    return r, nil
}

// GetByID loads one restaurant. ErrNotFound when it does not exist.
func (r *RestaurantRepo) GetByID(ctx context.Context, id uint64) (model.Restaurant, error) {
    rst, err := scanRestaurant(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, owner_id, name, dwell_minutes, is_active, created_at, updated_at
         FROM restaurants WHERE id = ?`, id))
    if err == sql.ErrNoRows {
        return model.Restaurant{}, ErrNotFound
    }
    return rst, err
}

// ListActive returns all restaurants currently accepting bookings,
// ordered by name.
func (r *RestaurantRepo) ListActive(ctx context.Context) ([]model.Restaurant, error) {
    rows, err := q(ctx, r.db).QueryContext(ctx,
        `SELECT id, owner_id, name, dwell_minutes, is_active, created_at, updated_at
         FROM restaurants WHERE is_active = 1 ORDER BY name`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Restaurant, 0)
    for rows.Next() {
        rst, err := scanRestaurant(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, rst)
    }
    return out, rows.Err()
}

// GetMealService loads one meal service, verifying it belongs to the
// restaurant.  ErrNotFound covers both a missing service and one owned
// by a different restaurant.
func (r *RestaurantRepo) GetMealService(ctx context.Context, restaurantID, mealServiceID uint64) (model.MealService, error) {
    var ms model.MealService
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, restaurant_id, name, meal_type, starts_at, ends_at, is_active
         FROM meal_services WHERE id = ? AND restaurant_id = ?`, mealServiceID, restaurantID).Scan(
        &ms.ID, &ms.RestaurantID, &ms.Name, &ms.MealType, &ms.StartsAt, &ms.EndsAt, &ms.IsActive)
    if err == sql.ErrNoRows {
        return model.MealService{}, ErrNotFound
    }
    return ms, err
}

// ListActiveMealServices returns a restaurant's active meal services
// ordered by their daily start time.
func (r *RestaurantRepo) ListActiveMealServices(ctx context.Context, restaurantID uint64) ([]model.MealService, error) {
    rows, err := q(ctx, r.db).QueryContext(ctx,
        `SELECT id, restaurant_id, name, meal_type, starts_at, ends_at, is_active
         FROM meal_services WHERE restaurant_id = ? AND is_active = 1
         ORDER BY starts_at`, restaurantID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.MealService, 0)
    for rows.Next() {
        var ms model.MealService
        if err := rows.Scan(&ms.ID, &ms.RestaurantID, &ms.Name, &ms.MealType, &ms.StartsAt, &ms.EndsAt, &ms.IsActive); err != nil {
            return nil, err
        }
        out = append(out, ms)
    }
    return out, rows.Err()
}

// GetTable loads one dining table.  ErrNotFound when it does not exist
// or belongs to a different restaurant.
func (r *RestaurantRepo) GetTable(ctx context.Context, restaurantID, tableID uint64) (model.DiningTable, error) {
    var t model.DiningTable
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, restaurant_id, section_id, label, capacity, is_active, created_at, updated_at
         FROM dining_tables WHERE id = ? AND restaurant_id = ?`, tableID, restaurantID).Scan(
        &t.ID, &t.RestaurantID, &t.SectionID, &t.Label, &t.Capacity, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
    if err == sql.ErrNoRows {
        return model.DiningTable{}, ErrNotFound
    }
    return t, err
}

// GetTables loads several dining tables of the same restaurant in one
// query, returned keyed by table ID.  Missing or inactive tables are
// simply absent from the map; the caller decides whether that is fatal.
func (r *RestaurantRepo) GetTables(ctx context.Context, restaurantID uint64, tableIDs []uint64) (map[uint64]model.DiningTable, error) {
    out := make(map[uint64]model.DiningTable, len(tableIDs))
    if len(tableIDs) == 0 {
        return out, nil
    }
    query := `SELECT id, restaurant_id, section_id, label, capacity, is_active, created_at, updated_at
              FROM dining_tables WHERE restaurant_id = ? AND is_active = 1 AND id IN (`
    args := make([]interface{}, 0, len(tableIDs)+1)
    args = append(args, restaurantID)
    for i, id := range tableIDs {
        if i > 0 {
            query += ","
        }
        query += "?"
        args = append(args, id)
    }
    query += ")"
    rows, err := q(ctx, r.db).QueryContext(ctx, query, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var t model.DiningTable
        if err := rows.Scan(&t.ID, &t.RestaurantID, &t.SectionID, &t.Label, &t.Capacity, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
            return nil, err
        }
        out[t.ID] = t
    }
    return out, rows.Err()
}

// ListTablesBySection returns a restaurant's active tables grouped for
// floor-plan display, ordered by section then label.
func (r *RestaurantRepo) ListTablesBySection(ctx context.Context, restaurantID uint64) ([]model.DiningTable, error) {
    rows, err := q(ctx, r.db).QueryContext(ctx,
        `SELECT id, restaurant_id, section_id, label, capacity, is_active, created_at, updated_at
         FROM dining_tables WHERE restaurant_id = ? AND is_active = 1
         ORDER BY section_id, label`, restaurantID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.DiningTable, 0)
    for rows.Next() {
        var t model.DiningTable
        if err := rows.Scan(&t.ID, &t.RestaurantID, &t.SectionID, &t.Label, &t.Capacity, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

// IsOwner reports whether the user manages the restaurant.  ErrNotFound
// when the restaurant does not exist.
func (r *RestaurantRepo) IsOwner(ctx context.Context, restaurantID, userID uint64) (bool, error) {
    var ownerID uint64
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT owner_id FROM restaurants WHERE id = ?`, restaurantID).Scan(&ownerID)
    if err == sql.ErrNoRows {
        return false, ErrNotFound
    }
    if err != nil {
        return false, err
    }
    return ownerID == userID, nil
}
