package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/dinebook/table-reservation/internal/model"
)

// CapacityRepo provides data access to the capacity_records table: the
// per-restaurant, per-meal-service, per-date counters of total versus
// booked buffet seats.  The conditional increment in Reserve is the
// sole correctness mechanism against concurrent over-booking; there is
// no application-level locking around it.
type CapacityRepo struct {
    db *sql.DB
}

// NewCapacityRepo returns a CapacityRepo bound to the given database.
func NewCapacityRepo(db *sql.DB) *CapacityRepo { return &CapacityRepo{db: db} }

// Reserve atomically books partySize seats for the given day.  The
// update only applies while the incremented count still fits under
// total_seats and the day is enabled; zero rows affected means the
// party does not fit and ErrCapacityExceeded is returned.  Callers must
// not have created dependent records before this call succeeds.
func (r *CapacityRepo) Reserve(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    const query = `UPDATE capacity_records
                   SET booked_seats = booked_seats + ?
                   WHERE restaurant_id = ? AND meal_service_id = ? AND service_date = ?
                     AND is_enabled = 1
                     AND booked_seats + ? <= total_seats`
    res, err := q(ctx, r.db).ExecContext(ctx, query, partySize, restaurantID, mealServiceID, date.Format("2006-01-02"), partySize)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrCapacityExceeded
    }
    return nil
}

// Release atomically returns partySize seats to the day.  The decrement
// only applies while at least that many seats are booked; zero rows
// affected returns ErrReleaseUnderflow, which signals the record was
// already released or never properly reserved.
func (r *CapacityRepo) Release(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, partySize uint32) error {
    const query = `UPDATE capacity_records
                   SET booked_seats = booked_seats - ?
                   WHERE restaurant_id = ? AND meal_service_id = ? AND service_date = ?
                     AND booked_seats >= ?`
    res, err := q(ctx, r.db).ExecContext(ctx, query, partySize, restaurantID, mealServiceID, date.Format("2006-01-02"), partySize)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrReleaseUnderflow
    }
    return nil
}

// Get loads one capacity record.  ErrNotFound when the population job
// has not created the day yet.
func (r *CapacityRepo) Get(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (model.CapacityRecord, error) {
    const query = `SELECT id, restaurant_id, meal_service_id, service_date, total_seats, booked_seats, is_enabled, created_at, updated_at
                   FROM capacity_records
                   WHERE restaurant_id = ? AND meal_service_id = ? AND service_date = ?`
    var rec model.CapacityRecord
    err := q(ctx, r.db).QueryRowContext(ctx, query, restaurantID, mealServiceID, date.Format("2006-01-02")).Scan(
        &rec.ID, &rec.RestaurantID, &rec.MealServiceID, &rec.ServiceDate,
        &rec.TotalSeats, &rec.BookedSeats, &rec.IsEnabled, &rec.CreatedAt, &rec.UpdatedAt,
    )
    if err == sql.ErrNoRows {
        return model.CapacityRecord{}, ErrNotFound
    }
    return rec, err
}

// ListByDate returns all capacity records of a restaurant for one day,
// one per meal service, ordered by meal service ID.
func (r *CapacityRepo) ListByDate(ctx context.Context, restaurantID uint64, date time.Time) ([]model.CapacityRecord, error) {
    const query = `SELECT id, restaurant_id, meal_service_id, service_date, total_seats, booked_seats, is_enabled, created_at, updated_at
                   FROM capacity_records
                   WHERE restaurant_id = ? AND service_date = ?
                   ORDER BY meal_service_id`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, restaurantID, date.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.CapacityRecord
    for rows.Next() {
        var rec model.CapacityRecord
        if err := rows.Scan(
            &rec.ID, &rec.RestaurantID, &rec.MealServiceID, &rec.ServiceDate,
            &rec.TotalSeats, &rec.BookedSeats, &rec.IsEnabled, &rec.CreatedAt, &rec.UpdatedAt,
        ); err != nil {
            return nil, err
        }
        out = append(out, rec)
    }
    return out, rows.Err()
}

// InsertIgnore creates a capacity record for the day unless one already
// exists; the population job calls this once per (meal service, date)
// pair.  Returns true when a new row was inserted.
func (r *CapacityRepo) InsertIgnore(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time, totalSeats uint32) (bool, error) {
    const query = `INSERT IGNORE INTO capacity_records (restaurant_id, meal_service_id, service_date, total_seats, booked_seats, is_enabled)
                   VALUES (?, ?, ?, ?, 0, 1)`
    res, err := q(ctx, r.db).ExecContext(ctx, query, restaurantID, mealServiceID, date.Format("2006-01-02"), totalSeats)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// Disable turns a day off, but only while no seats are booked.  A day
// with booked seats keeps accepting its existing bookings and stays
// enabled even though it is no longer offered; the false return lets
// the caller report that instead of silently "fixing" it.
func (r *CapacityRepo) Disable(ctx context.Context, restaurantID, mealServiceID uint64, date time.Time) (bool, error) {
    const query = `UPDATE capacity_records
                   SET is_enabled = 0
                   WHERE restaurant_id = ? AND meal_service_id = ? AND service_date = ?
                     AND booked_seats = 0 AND is_enabled = 1`
    res, err := q(ctx, r.db).ExecContext(ctx, query, restaurantID, mealServiceID, date.Format("2006-01-02"))
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}
