package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// letting every repository run against the pool or inside a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store bundles the repositories, all bound to the same Querier.
type Store interface {
	Requests() RequestRepository
	Staff() StaffRepository
	Residents() ResidentRepository
	Categories() CategoryRepository
	Assignments() AssignmentRepository
	Audit() AuditRepository
	Notifications() NotificationRepository
	Outbox() OutboxRepository
}

// TxStore is a Store that can execute a function within one database
// transaction: the callback receives a Store whose repositories all share the
// transaction, and the transaction commits only if the callback returns nil.
type TxStore interface {
	Store
	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db   Querier
	pool *pgxpool.Pool
}

// NewStore builds the pgx-backed store.
func NewStore(pool *pgxpool.Pool) TxStore {
	return &sqlStore{db: pool, pool: pool}
}

func (s *sqlStore) Requests() RequestRepository           { return NewRequestRepository(s.db) }
func (s *sqlStore) Staff() StaffRepository                { return NewStaffRepository(s.db) }
func (s *sqlStore) Residents() ResidentRepository         { return NewResidentRepository(s.db) }
func (s *sqlStore) Categories() CategoryRepository        { return NewCategoryRepository(s.db) }
func (s *sqlStore) Assignments() AssignmentRepository     { return NewAssignmentRepository(s.db) }
func (s *sqlStore) Audit() AuditRepository                { return NewAuditRepository(s.db) }
func (s *sqlStore) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }
func (s *sqlStore) Outbox() OutboxRepository              { return NewOutboxRepository(s.db) }

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		// Already transaction-bound; join the enclosing transaction.
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&sqlStore{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
