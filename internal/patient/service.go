package patient

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
)

type Service struct {
	repo      RepositoryInterface
	publisher messaging.PublisherInterface
	metrics   *telemetry.Metrics
}

func NewService(repo RepositoryInterface, publisher messaging.PublisherInterface, metrics *telemetry.Metrics) *Service {
	return &Service{repo: repo, publisher: publisher, metrics: metrics}
}

func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient, err := s.repo.CreatePatient(ctx, req)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPatientOperation(ctx, "create")
	log.Info().Int64("patient_id", patient.ID).Msg("patient created")

	messaging.PublishOrLog(ctx, s.publisher, messaging.EventPatientCreated, messaging.PatientCreatedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPatientCreated),
		Data: messaging.PatientCreatedData{
			PatientID: patient.ID,
			FirstName: patient.FirstName,
			LastName:  patient.LastName,
			CreatedAt: patient.CreatedAt,
		},
	})
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*PatientResponse, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, params pagination.Params, search string) (*PaginatedPatientListResponse, error) {
	params.Validate()

	patients, total, err := s.repo.ListPatients(ctx, params.Limit, params.Offset(), strings.TrimSpace(search))
	if err != nil {
		return nil, err
	}

	page := pagination.NewPage(patients, params, total)
	return &page, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient, err := s.repo.UpdatePatient(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPatientOperation(ctx, "update")
	return patient, nil
}

// DeletePatient soft deletes a patient. Visits, prescriptions and files are
// kept so the clinical history stays intact.
func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	deletedAt, err := s.repo.DeletePatient(ctx, id)
	if err != nil {
		return err
	}

	s.metrics.RecordPatientOperation(ctx, "delete")
	log.Info().Int64("patient_id", id).Msg("patient soft deleted")

	messaging.PublishOrLog(ctx, s.publisher, messaging.EventPatientDeleted, messaging.PatientDeletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPatientDeleted),
		Data:      messaging.PatientDeletedData{PatientID: id, DeletedAt: deletedAt},
	})
	return nil
}
