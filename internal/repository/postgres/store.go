package postgres

import (
	"context"
	"database/sql"
	"log"

	"dispatch/internal/repository"
)

// Store bundles the PostgreSQL repositories and transaction execution.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ExecTx runs fn against transaction-scoped repositories, committing
// when fn returns nil and rolling back otherwise.
func (s *Store) ExecTx(ctx context.Context, fn func(repository.TxRepos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	repos := repository.TxRepos{
		Orders:   NewOrderRepositoryWithTx(tx),
		Couriers: NewCourierRepositoryWithTx(tx),
	}

	if err := fn(repos); err != nil {
		// The callback error keeps its identity so callers can match
		// sentinels like ErrVersionConflict.
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[STORE] rollback failed: %v (after: %v)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

var _ repository.Transactor = (*Store)(nil)
