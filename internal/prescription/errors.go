package prescription

import "github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"

var (
	ErrPrescriptionNotFound = apperr.NotFound("prescription not found")
	// ErrNoPrescription means the visit exists but has no prescription yet.
	ErrNoPrescription = apperr.NotFound("no prescription found for this visit")

	ErrVisitNotFound   = apperr.NotFound("visit not found")
	ErrPatientNotFound = apperr.NotFound("patient not found")

	ErrItemNotFound         = apperr.NotFound("prescription item not found")
	ErrLabTestItemNotFound  = apperr.NotFound("prescription lab test not found")
	ErrImagingItemNotFound  = apperr.NotFound("prescription imaging study not found")
	ErrPatientRequired      = apperr.Validation("patient_id or visit_id is required")
	ErrVisitPatientMismatch = apperr.Validation("visit does not belong to the given patient")
	ErrUnknownVisit         = apperr.Validation("visit_id does not reference an existing visit")
	ErrUnknownPatient       = apperr.Validation("patient_id does not reference an existing patient")
	ErrUnknownMedicine      = apperr.Validation("medicine_id does not reference an existing medicine")
	ErrUnknownLabTest       = apperr.Validation("lab_test_id does not reference an existing lab test")
	ErrUnknownImagingStudy  = apperr.Validation("imaging_study_id does not reference an existing imaging study")
	ErrMedicineRequired     = apperr.Validation("medicine_id is required")
	ErrLabTestRequired      = apperr.Validation("lab_test_id is required")
	ErrImagingRequired      = apperr.Validation("imaging_study_id is required")
	ErrInvalidDate          = apperr.Validation("prescription_date must be YYYY-MM-DD or RFC 3339")
	ErrNoFieldsToUpdate     = apperr.Validation("no fields to update")
)
