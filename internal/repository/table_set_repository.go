package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "strconv"
    "time"

    "github.com/dinebook/table-reservation/internal/model"
)

// TableSetRepo provides data access to the table_sets table.  Member
// tables, their slots and the original-status snapshot are stored as
// JSON columns; table_ids and slot_ids are index-aligned arrays and
// original_statuses is an object keyed by slot ID.
type TableSetRepo struct {
    db *sql.DB
}

// NewTableSetRepo returns a TableSetRepo bound to the given database.
func NewTableSetRepo(db *sql.DB) *TableSetRepo { return &TableSetRepo{db: db} }

const tableSetColumns = `id, reservation_id, table_ids, slot_ids, primary_table_id, original_statuses, status, combined_capacity, dissolved_at, dissolved_by, created_at, updated_at`

func scanTableSet(row interface{ Scan(...interface{}) error }) (model.TableSet, error) {
    var (
        s           model.TableSet
        resID       sql.NullInt64
        tablesJSON  []byte
        slotsJSON   []byte
        origJSON    []byte
        status      string
        dissolvedAt sql.NullTime
        dissolvedBy sql.NullInt64
    )
    err := row.Scan(&s.ID, &resID, &tablesJSON, &slotsJSON, &s.PrimaryTableID, &origJSON,
        &status, &s.CombinedCapacity, &dissolvedAt, &dissolvedBy, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        return model.TableSet{}, err
    }
    s.Status = model.TableSetStatus(status)
    if resID.Valid {
        id := uint64(resID.Int64)
        s.ReservationID = &id
    }
    if dissolvedAt.Valid {
        t := dissolvedAt.Time
        s.DissolvedAt = &t
    }
    if dissolvedBy.Valid {
        id := uint64(dissolvedBy.Int64)
        s.DissolvedBy = &id
    }
    if err := json.Unmarshal(tablesJSON, &s.TableIDs); err != nil {
        return model.TableSet{}, err
    }
    if err := json.Unmarshal(slotsJSON, &s.SlotIDs); err != nil {
        return model.TableSet{}, err
    }
    // JSON object keys are strings; convert back to slot IDs.
    var rawStatuses map[string]string
    if len(origJSON) > 0 {
        if err := json.Unmarshal(origJSON, &rawStatuses); err != nil {
            return model.TableSet{}, err
        }
    }
    s.OriginalStatuses = make(map[uint64]model.SlotStatus, len(rawStatuses))
    for k, v := range rawStatuses {
        id, err := strconv.ParseUint(k, 10, 64)
        if err != nil {
            continue
        }
        s.OriginalStatuses[id] = model.SlotStatus(v)
    }
    return s, nil
}

// Create inserts a merge set in PENDING_MERGE state and populates the
// generated ID on the passed struct.
func (r *TableSetRepo) Create(ctx context.Context, set *model.TableSet) error {
    tablesJSON, err := json.Marshal(set.TableIDs)
    if err != nil {
        return err
    }
    slotsJSON, err := json.Marshal(set.SlotIDs)
    if err != nil {
        return err
    }
    rawStatuses := make(map[string]string, len(set.OriginalStatuses))
    for id, st := range set.OriginalStatuses {
        rawStatuses[strconv.FormatUint(id, 10)] = string(st)
    }
    origJSON, err := json.Marshal(rawStatuses)
    if err != nil {
        return err
    }
    res, err := q(ctx, r.db).ExecContext(ctx,
        `INSERT INTO table_sets (reservation_id, table_ids, slot_ids, primary_table_id, original_statuses, status, combined_capacity)
         VALUES (NULL, ?, ?, ?, ?, 'PENDING_MERGE', ?)`,
        tablesJSON, slotsJSON, set.PrimaryTableID, origJSON, set.CombinedCapacity)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    set.ID = uint64(id)
    set.Status = model.TableSetPendingMerge
    return nil
}

// GetByID loads one merge set. ErrNotFound when it does not exist.
func (r *TableSetRepo) GetByID(ctx context.Context, id uint64) (model.TableSet, error) {
    s, err := scanTableSet(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+tableSetColumns+` FROM table_sets WHERE id = ?`, id))
    if err == sql.ErrNoRows {
        return model.TableSet{}, ErrNotFound
    }
    return s, err
}

// FindLiveByReservation returns the ACTIVE or PENDING_MERGE set bound
// to the reservation, or nil when the reservation has none.
func (r *TableSetRepo) FindLiveByReservation(ctx context.Context, reservationID uint64) (*model.TableSet, error) {
    s, err := scanTableSet(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+tableSetColumns+` FROM table_sets
         WHERE reservation_id = ? AND status IN ('ACTIVE','PENDING_MERGE')
         ORDER BY id DESC LIMIT 1`, reservationID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// FindPendingBySlot returns a PENDING_MERGE set containing the slot.
// Used at confirm time to locate the set created during the hold, and
// at hold-release time to dissolve an abandoned merge.
func (r *TableSetRepo) FindPendingBySlot(ctx context.Context, slotID uint64) (*model.TableSet, error) {
    s, err := scanTableSet(q(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+tableSetColumns+` FROM table_sets
         WHERE status = 'PENDING_MERGE' AND JSON_CONTAINS(slot_ids, CAST(? AS JSON))
         ORDER BY id DESC LIMIT 1`, slotID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &s, nil
}

// Activate binds a PENDING_MERGE set to its confirmed reservation.
// Zero rows affected returns ErrStatusConflict: the set was dissolved
// or activated concurrently.
func (r *TableSetRepo) Activate(ctx context.Context, setID, reservationID uint64) error {
    res, err := q(ctx, r.db).ExecContext(ctx,
        `UPDATE table_sets SET status = 'ACTIVE', reservation_id = ?
         WHERE id = ? AND status = 'PENDING_MERGE'`,
        reservationID, setID)
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

// MarkDissolved flips the set to DISSOLVED and records who unwound it
// and when.  The slot restoration around it is the caller's job; this
// only writes the set row.  Zero rows affected returns
// ErrStatusConflict so a concurrent dissolution cannot be doubled.
func (r *TableSetRepo) MarkDissolved(ctx context.Context, setID, dissolvedBy uint64, at time.Time) error {
    res, err := q(ctx, r.db).ExecContext(ctx,
        `UPDATE table_sets SET status = 'DISSOLVED', dissolved_at = ?, dissolved_by = ?
         WHERE id = ? AND status IN ('ACTIVE','PENDING_MERGE')`,
        at.UTC(), dissolvedBy, setID)
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
