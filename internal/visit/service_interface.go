package visit

import (
	"context"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

// ServiceInterface defines the contract for visit business logic operations
type ServiceInterface interface {
	CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error)
	GetVisit(ctx context.Context, id int64) (*Visit, error)
	ListVisits(ctx context.Context, params pagination.Params, filter ListFilter) (*PaginatedVisitListResponse, error)
	ListPatientVisits(ctx context.Context, patientID int64) ([]Visit, error)
	UpdateVisit(ctx context.Context, id int64, req UpdateVisitRequest) (*Visit, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*Visit, error)
	DeleteVisit(ctx context.Context, id int64) (*DeleteResult, error)
}

var _ ServiceInterface = (*Service)(nil)
