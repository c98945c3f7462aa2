package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/younes21/PastryLabManager-sub003/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		// Backstop for the ledger invariant; the repository normally
		// rejects negative results before the constraint fires.
		return errors.InsufficientStock("", map[string]string{
			"quantity": "on-hand quantity cannot go negative",
		})

	case strings.Contains(constraint, "operation_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: reception, preparation, preparation_reliquat, adjustment, adjustment_waste, initial_inventory, internal_transfer, delivery",
		})

	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: draft, pending, in_progress, completed, cancelled",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lots_code"):
		return "a lot with this code already exists"
	case strings.Contains(constraint, "operations_code"):
		return "an operation with this code already exists"
	case strings.Contains(constraint, "stock_entries_article_lot_zone"):
		return "a stock entry for this article, lot and zone already exists"
	default:
		return "a record with these values already exists"
	}
}
