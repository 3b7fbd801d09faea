package files

import (
	"context"
	"os"
)

// ServiceInterface defines the contract for patient file operations
type ServiceInterface interface {
	Upload(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error)
	RecordRejection(ctx context.Context, err error)
	ListFiles(ctx context.Context, patientID int64, visitID *int64) ([]PatientFile, error)
	GetFile(ctx context.Context, patientID, fileID int64) (*PatientFile, error)
	OpenFile(ctx context.Context, patientID, fileID int64) (*PatientFile, *os.File, error)
	DeleteFile(ctx context.Context, patientID, fileID int64) error
}

var _ ServiceInterface = (*Service)(nil)
