package gorm

import (
	"errors"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"

	"github.com/mavrin/vpncore/pkg/store"
)

const pgUniqueViolation = "23505"

// translate maps driver-level errors onto the store error taxonomy.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return store.ErrConflict
	}
	return err
}

// casResult converts the outcome of a conditional update into either
// success, ErrConflict (no row matched the expected state), or the
// underlying error.
func casResult(tx *gorm.DB) error {
	if tx.Error != nil {
		return translate(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}
