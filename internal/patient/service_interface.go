package patient

import (
	"context"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

// ServiceInterface defines the contract for patient business logic operations
type ServiceInterface interface {
	CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error)
	GetPatient(ctx context.Context, id int64) (*PatientResponse, error)
	ListPatients(ctx context.Context, params pagination.Params, search string) (*PaginatedPatientListResponse, error)
	UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error)
	DeletePatient(ctx context.Context, id int64) error
}

var _ ServiceInterface = (*Service)(nil)
