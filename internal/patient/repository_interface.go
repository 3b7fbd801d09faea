package patient

import (
	"context"
	"time"
)

// RepositoryInterface defines the contract for patient data access
type RepositoryInterface interface {
	CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error)
	ListPatients(ctx context.Context, limit, offset int, search string) ([]PatientResponse, int, error)
	GetPatient(ctx context.Context, id int64) (*PatientResponse, error)
	UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error)
	DeletePatient(ctx context.Context, id int64) (time.Time, error)
}

// Ensure Repository implements RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
