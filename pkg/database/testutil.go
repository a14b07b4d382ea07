package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

// NewMockPool returns a pgxmock pool that satisfies DBTX, so repository
// constructors accept it in place of a real pgxpool. Tests should defer
// a call to ExpectationsWereMet on the returned pool.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
