package repository

import (
    "context"
    "crypto/rand"
    "database/sql"
    "encoding/hex"
    "strings"
    "time"

    "github.com/dinebook/table-reservation/internal/model"
)

// TableSlotRepo provides data access to the table_slots and
// table_holds tables.  Slot state transitions are written as
// conditional updates on the current status so concurrent writers
// cannot push a slot through an invalid transition; zero rows affected
// is translated to the matching sentinel error.  All timestamps are
// UTC.
type TableSlotRepo struct {
    db *sql.DB
}

// NewTableSlotRepo returns a TableSlotRepo bound to the given database.
func NewTableSlotRepo(db *sql.DB) *TableSlotRepo { return &TableSlotRepo{db: db} }

const slotColumns = `id, table_id, slot_date, start_time, end_time, status, reservation_id, hold_expires_at, created_at, updated_at`

func scanSlot(row interface{ Scan(...interface{}) error }) (model.TableSlot, error) {
    var (
        s      model.TableSlot
        end    sql.NullTime
        resID  sql.NullInt64
        holdAt sql.NullTime
        status string
    )
    err := row.Scan(&s.ID, &s.TableID, &s.SlotDate, &s.StartTime, &end, &status, &resID, &holdAt, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        return model.TableSlot{}, err
    }
    s.Status = model.SlotStatus(status)
    if end.Valid {
        t := end.Time
        s.EndTime = &t
    }
    if resID.Valid {
        id := uint64(resID.Int64)
        s.ReservationID = &id
    }
    if holdAt.Valid {
        t := holdAt.Time
        s.HoldExpiresAt = &t
    }
    return s, nil
}

// GetByID loads a slot row. ErrNotFound when it does not exist.
func (r *TableSlotRepo) GetByID(ctx context.Context, slotID uint64) (model.TableSlot, error) {
    s, err := scanSlot(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+slotColumns+` FROM table_slots WHERE id = ?`, slotID))
    if err == sql.ErrNoRows {
        return model.TableSlot{}, ErrNotFound
    }
    return s, err
}

// FindOrCreate returns the slot for (tableID, date, start), creating it
// lazily in AVAILABLE state on the first hold attempt for that window.
// The INSERT IGNORE plus re-read keeps concurrent first attempts from
// erroring on the unique key.
func (r *TableSlotRepo) FindOrCreate(ctx context.Context, tableID uint64, date, start time.Time, end *time.Time) (model.TableSlot, error) {
    db := q(ctx, r.db)
    var endVal interface{}
    if end != nil {
        endVal = end.UTC()
    }
    _, err := db.ExecContext(ctx,
        `INSERT IGNORE INTO table_slots (table_id, slot_date, start_time, end_time, status)
         VALUES (?, ?, ?, ?, 'AVAILABLE')`,
        tableID, date.Format("2006-01-02"), start.UTC(), endVal)
    if err != nil {
        return model.TableSlot{}, err
    }
    s, err := scanSlot(db.QueryRowContext(ctx,
        `SELECT `+slotColumns+` FROM table_slots WHERE table_id = ? AND slot_date = ? AND start_time = ?`,
        tableID, date.Format("2006-01-02"), start.UTC()))
    if err == sql.ErrNoRows {
        return model.TableSlot{}, ErrNotFound
    }
    return s, err
}

// Hold claims an AVAILABLE slot for the user until expiresAt.  The
// status update is conditional on the slot still being AVAILABLE (or,
// when allowBlocked is set for manager overrides, BLOCKED); zero rows
// affected returns ErrSlotUnavailable.  A table_holds row is written
// alongside so the sweeper can find the claim.
func (r *TableSlotRepo) Hold(ctx context.Context, slotID, userID uint64, expiresAt time.Time, allowBlocked bool) error {
    db := q(ctx, r.db)
    cond := `status = 'AVAILABLE'`
    if allowBlocked {
        cond = `status IN ('AVAILABLE','BLOCKED')`
    }
    res, err := db.ExecContext(ctx,
        `UPDATE table_slots SET status = 'HELD', hold_expires_at = ?, reservation_id = NULL WHERE id = ? AND `+cond,
        expiresAt.UTC(), slotID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSlotUnavailable
    }
    token, err := randomToken(32)
    if err != nil {
        return err
    }
    _, err = db.ExecContext(ctx,
        `INSERT INTO table_holds (slot_id, user_id, hold_token, expires_at) VALUES (?, ?, ?, ?)`,
        slotID, userID, token, expiresAt.UTC())
    return err
}

// Confirm promotes a HELD slot to RESERVED, binds the reservation and
// clears the hold expiry and hold rows.  Zero rows affected returns
// ErrSlotNotHeld: the hold expired and was swept, or was never there.
func (r *TableSlotRepo) Confirm(ctx context.Context, slotID, reservationID uint64) error {
    db := q(ctx, r.db)
    res, err := db.ExecContext(ctx,
        `UPDATE table_slots SET status = 'RESERVED', reservation_id = ?, hold_expires_at = NULL
         WHERE id = ? AND status = 'HELD'`,
        reservationID, slotID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSlotNotHeld
    }
    _, err = db.ExecContext(ctx, `DELETE FROM table_holds WHERE slot_id = ?`, slotID)
    return err
}

// Release returns a slot to AVAILABLE from any status, clears the
// reservation binding and hold expiry, and deletes any lingering hold
// rows referencing the slot.
func (r *TableSlotRepo) Release(ctx context.Context, slotID uint64) error {
    db := q(ctx, r.db)
    if _, err := db.ExecContext(ctx,
        `UPDATE table_slots SET status = 'AVAILABLE', reservation_id = NULL, hold_expires_at = NULL WHERE id = ?`,
        slotID); err != nil {
        return err
    }
    _, err := db.ExecContext(ctx, `DELETE FROM table_holds WHERE slot_id = ?`, slotID)
    return err
}

// RestoreStatus is Release with an explicit target status; merge set
// dissolution uses it to put secondary slots back to the status they
// held before the merge (e.g. BLOCKED) instead of AVAILABLE.
func (r *TableSlotRepo) RestoreStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    db := q(ctx, r.db)
    if _, err := db.ExecContext(ctx,
        `UPDATE table_slots SET status = ?, reservation_id = NULL, hold_expires_at = NULL WHERE id = ?`,
        string(status), slotID); err != nil {
        return err
    }
    _, err := db.ExecContext(ctx, `DELETE FROM table_holds WHERE slot_id = ?`, slotID)
    return err
}

// SetAdminStatus moves a slot between AVAILABLE and the administrative
// statuses (BLOCKED, MAINTENANCE) outside the booking flow.  The update
// is conditional on the current status being one that the slot state
// machine allows to transition into the target, so an admin cannot
// stomp on a RESERVED slot.
func (r *TableSlotRepo) SetAdminStatus(ctx context.Context, slotID uint64, status model.SlotStatus) error {
    froms := make([]string, 0, 4)
    for _, from := range []model.SlotStatus{model.SlotAvailable, model.SlotBlocked, model.SlotMaintenance} {
        if from.CanTransitionTo(status) {
            froms = append(froms, "'"+string(from)+"'")
        }
    }
    res, err := q(ctx, r.db).ExecContext(ctx,
        `UPDATE table_slots SET status = ?, reservation_id = NULL, hold_expires_at = NULL
         WHERE id = ? AND status IN (`+strings.Join(froms, ",")+`)`,
        string(status), slotID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrSlotUnavailable
    }
    return nil
}

// SweepExpiredHolds finds all HELD slots whose hold has expired,
// returns them to AVAILABLE and deletes their hold rows.  It is invoked
// inline at the start of every availability-read path instead of from a
// background job; a zero count is a normal outcome, never an error.
// When restaurantID is non-zero the sweep is scoped to that
// restaurant's tables.
//
// The select, update and delete run in one transaction (joining an
// outer one when present) with the expiry predicate repeated on every
// statement, so a concurrent sweep that already released a slot and let
// another guest re-hold it cannot have its fresh hold flipped or its
// hold row deleted here.
func (r *TableSlotRepo) SweepExpiredHolds(ctx context.Context, restaurantID uint64, now time.Time) (int, error) {
    released := 0
    err := withTx(ctx, r.db, nil, func(ctx context.Context) error {
        db := q(ctx, r.db)
        cutoff := now.UTC()
        query := `SELECT s.id FROM table_slots s`
        args := []interface{}{}
        if restaurantID != 0 {
            query += ` JOIN dining_tables t ON t.id = s.table_id WHERE t.restaurant_id = ? AND`
            args = append(args, restaurantID)
        } else {
            query += ` WHERE`
        }
        query += ` s.status = 'HELD' AND s.hold_expires_at IS NOT NULL AND s.hold_expires_at < ? FOR UPDATE`
        args = append(args, cutoff)

        rows, err := db.QueryContext(ctx, query, args...)
        if err != nil {
            return err
        }
        var expired []uint64
        for rows.Next() {
            var id uint64
            if scanErr := rows.Scan(&id); scanErr != nil {
                rows.Close()
                return scanErr
            }
            expired = append(expired, id)
        }
        if err := rows.Close(); err != nil {
            return err
        }
        if len(expired) == 0 {
            return nil
        }
        placeholders := strings.TrimSuffix(strings.Repeat("?,", len(expired)), ",")
        idArgs := make([]interface{}, 0, len(expired)+1)
        for _, id := range expired {
            idArgs = append(idArgs, id)
        }
        res, err := db.ExecContext(ctx,
            `UPDATE table_slots SET status = 'AVAILABLE', reservation_id = NULL, hold_expires_at = NULL
             WHERE id IN (`+placeholders+`) AND status = 'HELD' AND hold_expires_at < ?`,
            append(idArgs, cutoff)...)
        if err != nil {
            return err
        }
        n, err := res.RowsAffected()
        if err != nil {
            return err
        }
        if _, err := db.ExecContext(ctx,
            `DELETE FROM table_holds WHERE slot_id IN (`+placeholders+`) AND expires_at < ?`,
            append(idArgs, cutoff)...); err != nil {
            return err
        }
        released = int(n)
        return nil
    })
    return released, err
}

// ListForDate returns all slot rows for the given tables on one date.
func (r *TableSlotRepo) ListForDate(ctx context.Context, tableIDs []uint64, date time.Time) ([]model.TableSlot, error) {
    if len(tableIDs) == 0 {
        return nil, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tableIDs)), ",")
    args := make([]interface{}, 0, len(tableIDs)+1)
    for _, id := range tableIDs {
        args = append(args, id)
    }
    args = append(args, date.Format("2006-01-02"))
    rows, err := q(ctx, r.db).QueryContext(ctx,
        `SELECT `+slotColumns+` FROM table_slots WHERE table_id IN (`+placeholders+`) AND slot_date = ? ORDER BY table_id, start_time`,
        args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.TableSlot
    for rows.Next() {
        s, err := scanSlot(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// ActiveHoldSlotIDs returns the slot IDs the user currently holds with
// unexpired holds for tables of the given restaurant on the given date.
// Used when confirming a reservation to ensure the holds are still
// alive.
func (r *TableSlotRepo) ActiveHoldSlotIDs(ctx context.Context, userID, restaurantID uint64, date, now time.Time) ([]uint64, error) {
    const query = `SELECT h.slot_id
                   FROM table_holds h
                   JOIN table_slots s ON s.id = h.slot_id
                   JOIN dining_tables t ON t.id = s.table_id
                   WHERE h.user_id = ? AND t.restaurant_id = ? AND s.slot_date = ? AND h.expires_at > ?
                   ORDER BY h.slot_id`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, userID, restaurantID, date.Format("2006-01-02"), now.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        out = append(out, id)
    }
    return out, rows.Err()
}

// DeleteHoldsByUser removes the user's holds on the restaurant's slots
// for a date and returns the affected slot IDs so the caller can put
// the slots back to AVAILABLE.
func (r *TableSlotRepo) DeleteHoldsByUser(ctx context.Context, userID, restaurantID uint64, date time.Time) ([]uint64, error) {
    db := q(ctx, r.db)
    const sel = `SELECT h.slot_id
                 FROM table_holds h
                 JOIN table_slots s ON s.id = h.slot_id
                 JOIN dining_tables t ON t.id = s.table_id
                 WHERE h.user_id = ? AND t.restaurant_id = ? AND s.slot_date = ?`
    rows, err := db.QueryContext(ctx, sel, userID, restaurantID, date.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    var slotIDs []uint64
    for rows.Next() {
        var id uint64
        if scanErr := rows.Scan(&id); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        slotIDs = append(slotIDs, id)
    }
    if err := rows.Close(); err != nil {
        return nil, err
    }
    if len(slotIDs) == 0 {
        return nil, nil
    }
    placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slotIDs)), ",")
    args := make([]interface{}, 0, len(slotIDs))
    for _, id := range slotIDs {
        args = append(args, id)
    }
    if _, err := db.ExecContext(ctx, `DELETE FROM table_holds WHERE slot_id IN (`+placeholders+`)`, args...); err != nil {
        return nil, err
    }
    return slotIDs, nil
}

// OccupancyWindow is one existing table occupancy the dwell-time
// conflict checker tests candidate windows against.
type OccupancyWindow struct {
    ReservationID uint64
    Start         time.Time
    End           *time.Time // nil when the booking has no explicit end
}

// ListOccupancies returns the table's occupancy windows on a date from
// CONFIRMED and SEATED reservations holding an assignment on it.
func (r *TableSlotRepo) ListOccupancies(ctx context.Context, tableID uint64, date time.Time) ([]OccupancyWindow, error) {
    const query = `SELECT a.reservation_id, a.table_start_time, a.table_end_time
                   FROM reservation_table_assignments a
                   JOIN reservations res ON res.id = a.reservation_id
                   WHERE a.table_id = ? AND res.service_date = ? AND res.status IN ('CONFIRMED','SEATED')
                   ORDER BY a.table_start_time`
    rows, err := q(ctx, r.db).QueryContext(ctx, query, tableID, date.Format("2006-01-02"))
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []OccupancyWindow
    for rows.Next() {
        var (
            w   OccupancyWindow
            end sql.NullTime
        )
        if err := rows.Scan(&w.ReservationID, &w.Start, &end); err != nil {
            return nil, err
        }
        if end.Valid {
            t := end.Time
            w.End = &t
        }
        out = append(out, w)
    }
    return out, rows.Err()
}

// randomToken generates a random hexadecimal string from n bytes of
// cryptographically secure data, used for hold tokens.
func randomToken(n int) (string, error) {
    b := make([]byte, n)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
