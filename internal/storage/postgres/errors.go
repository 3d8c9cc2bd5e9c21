package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rede-Latitude-Tech/remove-duplicidade-localizacao/internal/storage"
)

// wrapDBError wraps a pgx error with operation context, converting
// pgx.ErrNoRows to storage.ErrNotFound so callers never need to import
// pgx to test error identity (mirrors the teacher's
// internal/storage/sqlite/errors.go wrapDBError idiom).
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapDBErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	op := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
