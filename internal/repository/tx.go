package repository

import "context"

// TxRepos bundles the repositories scoped to one transaction.
type TxRepos struct {
	Orders   OrderRepository
	Couriers CourierRepository
}

// Transactor runs a function against transaction-scoped repositories,
// committing on nil and rolling back on error. The order binding and
// the courier availability flag are only ever mutated through it.
type Transactor interface {
	ExecTx(ctx context.Context, fn func(TxRepos) error) error
}
