// ABOUTME: Error taxonomy for the mutation and cascade coordinators
// ABOUTME: Maps storage errors onto NotFound/Conflict/Validation/Persistence classes and status codes
package engine

import (
	"net/http"

	"github.com/zeebo/errs"

	"github.com/harperreed/cistore/db"
)

var (
	// ErrNotFound means a referenced object, location, or type is absent.
	ErrNotFound = errs.Class("not found")
	// ErrConflict means the request collides with existing state.
	ErrConflict = errs.Class("conflict")
	// ErrValidation means the request itself is malformed.
	ErrValidation = errs.Class("validation")
	// ErrPersistence wraps any other storage failure.
	ErrPersistence = errs.Class("persistence")
)

// Status returns the HTTP-style status code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case ErrNotFound.Has(err):
		return http.StatusNotFound
	case ErrConflict.Has(err):
		return http.StatusConflict
	case ErrValidation.Has(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// classify converts an error from the db layer into the engine taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case ErrNotFound.Has(err), ErrConflict.Has(err), ErrValidation.Has(err), ErrPersistence.Has(err):
		return err
	case db.ErrNotFound.Has(err):
		return ErrNotFound.Wrap(err)
	case db.ErrDuplicate.Has(err):
		return ErrConflict.Wrap(err)
	default:
		return ErrPersistence.Wrap(err)
	}
}

// kindOf names the error class for metrics labels.
func kindOf(err error) string {
	switch Status(err) {
	case http.StatusOK:
		return "ok"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "validation"
	default:
		return "persistence"
	}
}
