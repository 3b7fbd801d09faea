package visit

import "github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"

var (
	ErrVisitNotFound    = apperr.NotFound("visit not found")
	ErrPatientNotFound  = apperr.NotFound("patient not found")
	ErrPatientRequired  = apperr.Validation("patient_id is required")
	ErrUnknownPatient   = apperr.Validation("patient_id does not reference an existing patient")
	ErrInvalidVisitType = apperr.Validation("visit_type must be one of primary, follow_up")
	ErrInvalidStatus    = apperr.Validation("status must be one of waiting, completed, cancelled")
	ErrInvalidVisitDate = apperr.Validation("visit_date must be RFC 3339 or YYYY-MM-DD")
	ErrInvalidDate      = apperr.Validation("date filter must be YYYY-MM-DD")
	ErrNoFieldsToUpdate = apperr.Validation("no fields to update")
)
