package visit

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/prescription"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
)

// FileRemover deletes stored upload bytes by their storage-relative path.
type FileRemover interface {
	Remove(relPath string) error
}

type Service struct {
	repo       *Repository
	tx         db.TxRunner
	files      FileRemover
	filePolicy string
	publisher  messaging.PublisherInterface
	metrics    *telemetry.Metrics
}

// NewService builds the visit service. filePolicy is config.CascadeRetainFiles
// or config.CascadeDeleteFiles; files may be nil with the retain policy.
func NewService(q db.Querier, tx db.TxRunner, files FileRemover, filePolicy string,
	publisher messaging.PublisherInterface, metrics *telemetry.Metrics) *Service {
	if filePolicy == "" {
		filePolicy = config.CascadeRetainFiles
	}
	return &Service{
		repo:       NewRepository(q),
		tx:         tx,
		files:      files,
		filePolicy: filePolicy,
		publisher:  publisher,
		metrics:    metrics,
	}
}

func (s *Service) CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	visitDate := time.Now().UTC()
	if req.VisitDate != "" {
		visitDate, _ = parseVisitDate(req.VisitDate)
	}

	exists, err := s.repo.PatientExists(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUnknownPatient
	}

	id, err := s.repo.CreateVisit(ctx, req, visitDate)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVisitOperation(ctx, "create")
	log.Info().Int64("visit_id", id).Int64("patient_id", req.PatientID).Msg("visit created")
	return s.repo.GetVisit(ctx, id)
}

func (s *Service) GetVisit(ctx context.Context, id int64) (*Visit, error) {
	return s.repo.GetVisit(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, params pagination.Params, filter ListFilter) (*PaginatedVisitListResponse, error) {
	params.Validate()
	if filter.Status != "" {
		filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
		if !visitStatuses[filter.Status] {
			return nil, ErrInvalidStatus
		}
	}

	visits, total, err := s.repo.ListVisits(ctx, filter, params.Limit, params.Offset())
	if err != nil {
		return nil, err
	}

	page := pagination.NewPage(visits, params, total)
	return &page, nil
}

func (s *Service) ListPatientVisits(ctx context.Context, patientID int64) ([]Visit, error) {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}
	return s.repo.ListPatientVisits(ctx, patientID)
}

func (s *Service) UpdateVisit(ctx context.Context, id int64, req UpdateVisitRequest) (*Visit, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateVisit(ctx, id, req); err != nil {
		return nil, err
	}
	s.metrics.RecordVisitOperation(ctx, "update")
	return s.repo.GetVisit(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*Visit, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !visitStatuses[status] {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.metrics.RecordVisitOperation(ctx, "update_status")
	log.Info().Int64("visit_id", id).Str("status", status).Msg("visit status changed")
	return s.repo.GetVisit(ctx, id)
}

type cascadeResult struct {
	patientID      int64
	prescriptions  int64
	items          int64
	labTests       int64
	imagingStudies int64
	filePaths      []string
}

// cascadeDelete removes a visit and every row that depends on it. It must
// run inside a transaction; statement order is fixed.
func cascadeDelete(ctx context.Context, q db.Querier, visitID int64) (cascadeResult, error) {
	var res cascadeResult
	repo := NewRepository(q)
	prescriptions := prescription.NewRepository(q)

	ids, err := prescriptions.IDsByVisit(ctx, visitID)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		counts, err := prescriptions.DeleteChildren(ctx, id)
		if err != nil {
			return res, err
		}
		res.items += counts.Items
		res.labTests += counts.LabTests
		res.imagingStudies += counts.ImagingStudies
	}

	if res.prescriptions, err = repo.DeletePrescriptions(ctx, visitID); err != nil {
		return res, err
	}
	if res.filePaths, err = repo.DeleteFiles(ctx, visitID); err != nil {
		return res, err
	}
	if res.patientID, err = repo.DeleteVisit(ctx, visitID); err != nil {
		return res, err
	}
	return res, nil
}

// DeleteVisit deletes the visit together with its prescriptions, their line
// items and its file metadata in one transaction. Disk files are handled
// after commit according to the cascade file policy.
func (s *Service) DeleteVisit(ctx context.Context, id int64) (*DeleteResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "visit.cascade_delete",
		oteltrace.WithAttributes(attribute.Int64("visit.id", id)))
	defer span.End()

	var res cascadeResult
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		res, err = cascadeDelete(ctx, tx, id)
		return err
	})
	if err != nil {
		if !apperr.IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cascade delete failed")
		}
		return nil, err
	}

	deletedFiles := int64(len(res.filePaths))
	span.SetAttributes(
		attribute.Int64("deleted.prescriptions", res.prescriptions),
		attribute.Int64("deleted.files", deletedFiles),
		attribute.String("files.policy", s.filePolicy),
	)

	s.applyFilePolicy(id, res.filePaths)

	s.metrics.RecordVisitOperation(ctx, "delete")
	s.metrics.RecordCascadeDelete(ctx, "prescription_items", res.items)
	s.metrics.RecordCascadeDelete(ctx, "prescription_lab_tests", res.labTests)
	s.metrics.RecordCascadeDelete(ctx, "prescription_imaging_studies", res.imagingStudies)
	s.metrics.RecordCascadeDelete(ctx, "prescriptions", res.prescriptions)
	s.metrics.RecordCascadeDelete(ctx, "patient_files", deletedFiles)
	s.metrics.RecordCascadeDelete(ctx, "visits", 1)

	log.Info().
		Int64("visit_id", id).
		Int64("patient_id", res.patientID).
		Int64("prescriptions", res.prescriptions).
		Int64("files", deletedFiles).
		Str("file_policy", s.filePolicy).
		Msg("visit deleted")

	messaging.PublishOrLog(ctx, s.publisher, messaging.EventVisitDeleted, messaging.VisitDeletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventVisitDeleted),
		Data: messaging.VisitDeletedData{
			VisitID:              id,
			PatientID:            res.patientID,
			DeletedPrescriptions: res.prescriptions,
			DeletedFiles:         deletedFiles,
			FilePolicy:           s.filePolicy,
			DeletedAt:            time.Now().UTC(),
		},
	})

	return &DeleteResult{
		Message:              "Visit deleted successfully",
		DeletedVisitID:       id,
		DeletedPrescriptions: res.prescriptions,
		DeletedFiles:         deletedFiles,
	}, nil
}

// applyFilePolicy runs after commit. Failures are logged only: the metadata
// is already gone and the orphan sweep will pick up anything left behind.
func (s *Service) applyFilePolicy(visitID int64, paths []string) {
	if len(paths) == 0 {
		return
	}
	if s.filePolicy != config.CascadeDeleteFiles || s.files == nil {
		log.Info().
			Int64("visit_id", visitID).
			Int("files", len(paths)).
			Msg("visit file metadata removed, disk files retained")
		return
	}
	for _, p := range paths {
		if err := s.files.Remove(p); err != nil {
			log.Warn().Err(err).Int64("visit_id", visitID).Str("path", p).Msg("failed to remove visit file from disk")
		}
	}
}
