package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"microblogs/internal/observability"
	"microblogs/models"
)

const pgUniqueViolation = "23505"

// uniqueViolationField reports which user field a unique-constraint failure
// is about. Postgres names the violated index; SQLite names the column.
func uniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		return fieldFromConstraint(pgErr.ConstraintName + " " + pgErr.Detail)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed") || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fieldFromConstraint(msg)
	}
	return "", false
}

func fieldFromConstraint(s string) (string, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "username"):
		return "username", true
	case strings.Contains(s, "email"):
		return "email", true
	default:
		return "", false
	}
}

// translateWriteError turns a lost uniqueness race into the same field error
// the pre-insert check would have produced.
func translateWriteError(err error) error {
	if field, ok := uniqueViolationField(err); ok {
		observability.UniqueViolations.WithLabelValues(field).Inc()
		return models.NewFieldValidationError(models.ValidationErrors{models.NewUniquenessError(field)})
	}
	return models.NewInternalError(err)
}
