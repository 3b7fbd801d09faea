package patient

import "github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"

var (
	ErrPatientNotFound     = apperr.NotFound("patient not found")
	ErrFirstNameRequired   = apperr.Validation("first_name is required")
	ErrLastNameRequired    = apperr.Validation("last_name is required")
	ErrInvalidGender       = apperr.Validation("gender must be one of male, female, other")
	ErrInvalidDateOfBirth  = apperr.Validation("date_of_birth must be formatted as YYYY-MM-DD")
	ErrDateOfBirthInFuture = apperr.Validation("date_of_birth cannot be in the future")
	ErrNoFieldsToUpdate    = apperr.Validation("no fields to update")
	ErrInvalidPatientID    = apperr.Validation("invalid patient id")
)
