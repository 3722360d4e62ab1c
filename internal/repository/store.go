package repository

import (
    "context"
    "database/sql"
)

// Store bundles every repository over one database handle and exposes
// the transaction helpers the service layer composes them with.  The
// individual repos read the active transaction out of the context, so
// any mix of their methods can run atomically under WithTx.
type Store struct {
    DB            *sql.DB
    Users         *UserRepo
    Tokens        *TokenRepo
    Restaurants   *RestaurantRepo
    Capacity      *CapacityRepo
    Slots         *TableSlotRepo
    Sets          *TableSetRepo
    Reservations  *ReservationRepo
    Cancellations *CancellationRepo
    Policies      *PolicyRepo
}

// NewStore wires all repositories onto the shared database handle.
func NewStore(db *sql.DB) *Store {
    return &Store{
        DB:            db,
        Users:         NewUserRepo(db),
        Tokens:        NewTokenRepo(db),
        Restaurants:   NewRestaurantRepo(db),
        Capacity:      NewCapacityRepo(db),
        Slots:         NewTableSlotRepo(db),
        Sets:          NewTableSetRepo(db),
        Reservations:  NewReservationRepo(db),
        Cancellations: NewCancellationRepo(db),
        Policies:      NewPolicyRepo(db),
    }
}

// WithTx runs fn inside a transaction at the database's default
// isolation level.  Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
    return withTx(ctx, s.DB, nil, fn)
}

// WithSerializableTx runs fn inside a SERIALIZABLE transaction.  The
// cancellation flow runs under this level so its row lock plus guarded
// updates cannot interleave with a concurrent cancellation.
func (s *Store) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
    return withTx(ctx, s.DB, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
}
