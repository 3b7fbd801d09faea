package files

import (
	"fmt"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
)

var (
	ErrFileNotFound         = apperr.NotFound("file not found")
	ErrFileContentMissing   = apperr.NotFound("file content not found")
	ErrPatientNotFound      = apperr.NotFound("patient not found")
	ErrUnknownVisit         = apperr.Validation("visit_id does not reference an existing visit")
	ErrVisitPatientMismatch = apperr.Validation("visit does not belong to this patient")
	ErrInvalidPath          = apperr.Validation("invalid file path")
	ErrMissingFile          = apperr.ValidationCode(apperr.CodeMissingFile, "at least one file is required in field \"files\"")
)

func errTooManyFiles(max int) error {
	return apperr.ValidationCode(apperr.CodeTooManyFiles, fmt.Sprintf("at most %d files may be uploaded at once", max))
}

func errFileTooLarge(name string, max int64) error {
	return apperr.ValidationCode(apperr.CodeFileTooLarge,
		fmt.Sprintf("file %q exceeds the maximum size of %d MB", name, max/(1024*1024)))
}

func errTypeNotAllowed(name string) error {
	return apperr.ValidationCode(apperr.CodeFileTypeNotAllowed,
		fmt.Sprintf("file %q has a type that is not allowed", name))
}

func errUnexpectedField(field string) error {
	return apperr.ValidationCode(apperr.CodeUnexpectedField, fmt.Sprintf("unexpected field %q", field))
}
