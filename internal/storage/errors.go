package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/pfrederiksen/opencall-events/internal/event"
)

// ErrUnknownTable is returned by DescribeSchema for a table outside the schema.
var ErrUnknownTable = errors.New("unknown table")

// errConflict aborts a transaction that lost a uniqueness race so the caller
// can look the winning row up on a fresh connection.
var errConflict = errors.New("uniqueness conflict")

// isUniqueViolation recognises a duplicate key from any supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation recognises a missing parent row from any supported driver.
func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.ForeignKeyViolation
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// classify converts driver constraint failures into domain errors.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var integrity *event.IntegrityError
	if errors.As(err, &integrity) {
		return err
	}
	if isForeignKeyViolation(err) {
		return &event.IntegrityError{Op: op, Err: err}
	}
	return err
}

// missingParent reports a child row whose owner does not exist.
func missingParent(op, parent string, id uint) error {
	return &event.IntegrityError{Op: op, Err: fmt.Errorf("%s %d does not exist", parent, id)}
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
