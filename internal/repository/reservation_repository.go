package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/dinebook/table-reservation/internal/model"
)

// ReservationRepo provides CRUD operations for reservations and their
// table assignments.  A reservation groups the buffet seats and the
// table assignment created in the same booking.  All timestamp fields
// are stored in UTC.  Status changes go through UpdateStatusGuarded so
// a concurrent writer is always detected via the affected-row count.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, user_id, restaurant_id, meal_service_id, meal_type, reservation_type, service_date, reservation_time, party_size, status, total_amount_cents, advance_amount_cents, created_at, updated_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (model.Reservation, error) {
    var (
        res    model.Reservation
        mealID sql.NullInt64
        rtype  string
        status string
    )
    err := row.Scan(&res.ID, &res.UserID, &res.RestaurantID, &mealID, &res.MealType, &rtype,
        &res.ServiceDate, &res.ReservationTime, &res.PartySize, &status,
        &res.TotalAmountCents, &res.AdvanceAmountCents, &res.CreatedAt, &res.UpdatedAt)
    if err != nil {
        return model.Reservation{}, err
    }
    res.Type = model.ReservationType(rtype)
    res.Status = model.ReservationStatus(status)
    if mealID.Valid {
        id := uint64(mealID.Int64)
        res.MealServiceID = &id
    }
    return res, nil
}

// Create inserts a new reservation and populates the generated ID and
// the database-assigned timestamps on the provided record.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    db := q(ctx, r.db)
    var mealID interface{}
    if res.MealServiceID != nil {
        mealID = *res.MealServiceID
    }
    result, err := db.ExecContext(ctx,
        `INSERT INTO reservations (user_id, restaurant_id, meal_service_id, meal_type, reservation_type, service_date, reservation_time, party_size, status, total_amount_cents, advance_amount_cents)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        res.UserID, res.RestaurantID, mealID, res.MealType, string(res.Type),
        res.ServiceDate.Format("2006-01-02"), res.ReservationTime.UTC(), res.PartySize,
        string(res.Status), res.TotalAmountCents, res.AdvanceAmountCents)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults
    loaded, err := scanReservation(db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, res.ID))
    if err != nil {
        return err
    }
    *res = loaded
    return nil
}

// GetByID loads one reservation. ErrNotFound when it does not exist.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
    res, err := scanReservation(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
    if err == sql.ErrNoRows {
        return model.Reservation{}, ErrNotFound
    }
    return res, err
}

// GetForUpdate loads a reservation under a row lock.  The cancellation
// transaction acquires this lock as its very first operation and only
// then re-validates status and pending-cancellation state, so two
// concurrent cancellations of the same reservation serialize on the row
// instead of racing.  Must run inside a transaction; outside one the
// FOR UPDATE has no effect.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id uint64) (model.Reservation, error) {
    res, err := scanReservation(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ? FOR UPDATE`, id))
    if err == sql.ErrNoRows {
        return model.Reservation{}, ErrNotFound
    }
    return res, err
}

// UpdateStatusGuarded flips the reservation status, conditional on the
// row still being in the expected prior status.  Zero rows affected
// returns ErrStatusConflict and the caller must roll back everything
// else it did in the same transaction.
func (r *ReservationRepo) UpdateStatusGuarded(ctx context.Context, id uint64, from, to model.ReservationStatus) error {
    res, err := q(ctx, r.db).ExecContext(ctx,
        `UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
        string(to), id, string(from))
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrStatusConflict
    }
    return nil
}

// CreateAssignment inserts the reservation's table assignment and
// populates the generated ID.
func (r *ReservationRepo) CreateAssignment(ctx context.Context, a *model.TableAssignment) error {
    var end interface{}
    if a.TableEnd != nil {
        end = a.TableEnd.UTC()
    }
    result, err := q(ctx, r.db).ExecContext(ctx,
        `INSERT INTO reservation_table_assignments (reservation_id, section_id, table_id, slot_id, table_start_time, table_end_time)
         VALUES (?, ?, ?, ?, ?, ?)`,
        a.ReservationID, a.SectionID, a.TableID, a.SlotID, a.TableStart.UTC(), end)
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    a.ID = uint64(id)
    return nil
}

// GetAssignment returns the reservation's table assignment, or nil when
// the reservation has no table bound (buffet-only, or already released).
func (r *ReservationRepo) GetAssignment(ctx context.Context, reservationID uint64) (*model.TableAssignment, error) {
    var (
        a   model.TableAssignment
        end sql.NullTime
    )
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT id, reservation_id, section_id, table_id, slot_id, table_start_time, table_end_time, created_at
         FROM reservation_table_assignments WHERE reservation_id = ?`, reservationID).Scan(
        &a.ID, &a.ReservationID, &a.SectionID, &a.TableID, &a.SlotID, &a.TableStart, &end, &a.CreatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    if end.Valid {
        t := end.Time
        a.TableEnd = &t
    }
    return &a, nil
}

// DeleteAssignment removes the reservation's table assignment.  Called
// while unwinding a cancelled reservation's inventory.
func (r *ReservationRepo) DeleteAssignment(ctx context.Context, reservationID uint64) error {
    _, err := q(ctx, r.db).ExecContext(ctx,
        `DELETE FROM reservation_table_assignments WHERE reservation_id = ?`, reservationID)
    return err
}

// ReservationDetail encapsulates a reservation along with related
// restaurant, section and table information.  It is returned by
// ListByUser and GetDetailForUser for display to guests.
type ReservationDetail struct {
    ID               uint64  `json:"id"`
    RestaurantID     uint64  `json:"restaurant_id"`
    RestaurantName   string  `json:"restaurant_name"`
    Type             string  `json:"reservation_type"`
    Status           string  `json:"status"`
    MealType         string  `json:"meal_type"`
    ServiceDate      string  `json:"service_date"`
    ReservationTime  string  `json:"reservation_time"`
    PartySize        uint32  `json:"party_size"`
    TotalAmountCents int64   `json:"total_amount_cents"`
    TableLabel       *string `json:"table_label,omitempty"`
    SectionName      *string `json:"section_name,omitempty"`
}

// ListByUser returns all reservations for the given user along with
// restaurant and table details.  Reservations are ordered by creation
// time descending (newest first).  When no reservations exist, an
// empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
    const query = `SELECT res.id, res.restaurant_id, rst.name, res.reservation_type, res.status, res.meal_type,
                          res.service_date, res.reservation_time, res.party_size, res.total_amount_cents,
                          dt.label, sec.name
                   FROM reservations res
                   JOIN restaurants rst ON rst.id = res.restaurant_id
                   LEFT JOIN reservation_table_assignments a ON a.reservation_id = res.id
                   LEFT JOIN dining_tables dt ON dt.id = a.table_id
                   LEFT JOIN sections sec ON sec.id = a.section_id
                   WHERE res.user_id = ?
                   ORDER BY res.created_at DESC`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]ReservationDetail, 0)
    for rows.Next() {
        d, err := scanReservationDetail(rows)
        if err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    return details, rows.Err()
}

// GetDetailForUser returns a single reservation for the given user,
// enforcing ownership.  ErrNotFound when the reservation does not
// exist, ErrForbidden when it belongs to a different user.
func (r *ReservationRepo) GetDetailForUser(ctx context.Context, reservationID, userID uint64) (*ReservationDetail, error) {
    var owner uint64
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT user_id FROM reservations WHERE id = ?`, reservationID).Scan(&owner)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if owner != userID {
        return nil, ErrForbidden
    }
    const query = `SELECT res.id, res.restaurant_id, rst.name, res.reservation_type, res.status, res.meal_type,
                          res.service_date, res.reservation_time, res.party_size, res.total_amount_cents,
                          dt.label, sec.name
                   FROM reservations res
                   JOIN restaurants rst ON rst.id = res.restaurant_id
                   LEFT JOIN reservation_table_assignments a ON a.reservation_id = res.id
                   LEFT JOIN dining_tables dt ON dt.id = a.table_id
                   LEFT JOIN sections sec ON sec.id = a.section_id
                   WHERE res.id = ?`
    d, err := scanReservationDetail(q(ctx, r.db).QueryRowContext(ctx, query, reservationID))
    if err != nil {
        return nil, err
    }
    return &d, nil
}

func scanReservationDetail(row interface{ Scan(...interface{}) error }) (ReservationDetail, error) {
    var (
        d       ReservationDetail
        date    time.Time
        at      time.Time
        label   sql.NullString
        section sql.NullString
    )
    err := row.Scan(&d.ID, &d.RestaurantID, &d.RestaurantName, &d.Type, &d.Status, &d.MealType,
        &date, &at, &d.PartySize, &d.TotalAmountCents, &label, &section)
    if err != nil {
        return ReservationDetail{}, err
    }
    d.ServiceDate = date.Format("2006-01-02")
    d.ReservationTime = at.UTC().Format(time.RFC3339)
    if label.Valid {
        l := label.String
        d.TableLabel = &l
    }
    if section.Valid {
        s := section.String
        d.SectionName = &s
    }
    return d, nil
}

// ListByRestaurantForManager returns all reservations for a restaurant
// on a given service date, validating that the restaurant belongs to
// the calling manager.  sql.ErrNoRows from the ownership check is
// mapped to ErrNotFound; a mismatched manager returns ErrForbidden.
func (r *ReservationRepo) ListByRestaurantForManager(ctx context.Context, restaurantID, managerID uint64, date time.Time) ([]ReservationDetail, error) {
    var ownerID uint64
    err := q(ctx, r.db).QueryRowContext(ctx,
        `SELECT owner_id FROM restaurants WHERE id = ?`, restaurantID).Scan(&ownerID)
    if err == sql.ErrNoRows {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if ownerID != managerID {
        return nil, ErrForbidden
    }
    const query = `SELECT res.id, res.restaurant_id, rst.name, res.reservation_type, res.status, res.meal_type,
                          res.service_date, res.reservation_time, res.party_size, res.total_amount_cents,
                          dt.label, sec.name
                   FROM reservations res
                   JOIN restaurants rst ON rst.id = res.restaurant_id
                   LEFT JOIN reservation_table_assignments a ON a.reservation_id = res.id
                   LEFT JOIN dining_tables dt ON dt.id = a.table_id
                   LEFT JOIN sections sec ON sec.id = a.section_id
                   WHERE res.restaurant_id = ? AND res.service_date = ?
                   ORDER BY res.reservation_time, res.id`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, restaurantID, date.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]ReservationDetail, 0)
    for rows.Next() {
        d, err := scanReservationDetail(rows)
        if err != nil {
            return nil, err
        }
        details = append(details, d)
    }
    return details, rows.Err()
}
