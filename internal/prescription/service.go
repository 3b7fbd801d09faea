package prescription

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
)

type Service struct {
	repo      *Repository
	tx        db.TxRunner
	publisher messaging.PublisherInterface
	metrics   *telemetry.Metrics
}

// NewService reads through q and runs multi-statement writes through tx.
func NewService(q db.Querier, tx db.TxRunner, publisher messaging.PublisherInterface, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:      NewRepository(q),
		tx:        tx,
		publisher: publisher,
		metrics:   metrics,
	}
}

func (s *Service) GetPrescription(ctx context.Context, id int64) (*Prescription, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "prescription.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("lookup", "id"), attribute.Int64("prescription.id", id))

	start := time.Now()
	p, err := s.repo.Assemble(ctx, id)
	s.metrics.RecordAssembly(ctx, "id", msSince(start), err == nil)
	if err != nil && !apperr.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assembly failed")
	}
	return p, err
}

// GetPrescriptionByVisit assembles the prescription attached to a visit.
// When a visit has several, the newest prescription_date wins, then the
// highest id.
func (s *Service) GetPrescriptionByVisit(ctx context.Context, visitID int64) (*Prescription, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "prescription.assemble")
	defer span.End()
	span.SetAttributes(attribute.String("lookup", "visit"), attribute.Int64("visit.id", visitID))

	start := time.Now()
	p, err := s.assembleForVisit(ctx, visitID)
	s.metrics.RecordAssembly(ctx, "visit", msSince(start), err == nil)
	if err != nil && !apperr.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assembly failed")
	}
	return p, err
}

func (s *Service) assembleForVisit(ctx context.Context, visitID int64) (*Prescription, error) {
	ids, err := s.repo.IDsByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		if _, err := s.repo.VisitPatient(ctx, visitID); err != nil {
			if errors.Is(err, ErrUnknownVisit) {
				return nil, ErrVisitNotFound
			}
			return nil, err
		}
		return nil, ErrNoPrescription
	}
	if len(ids) > 1 {
		log.Warn().
			Int64("visit_id", visitID).
			Int("prescriptions", len(ids)).
			Int64("selected_prescription_id", ids[0]).
			Msg("visit has more than one prescription, returning the most recent")
	}
	return s.repo.Assemble(ctx, ids[0])
}

func (s *Service) ListPatientPrescriptions(ctx context.Context, patientID int64) ([]Prescription, error) {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	ids, err := s.repo.IDsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	prescriptions := make([]Prescription, 0, len(ids))
	for _, id := range ids {
		p, err := s.repo.Assemble(ctx, id)
		if apperr.IsNotFound(err) {
			// deleted between the id lookup and the assembly
			continue
		}
		if err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, *p)
	}
	return prescriptions, nil
}

// CreatePrescription stores the prescription and its initial line items in
// one transaction. patient_id is taken from the visit when omitted.
func (s *Service) CreatePrescription(ctx context.Context, req CreatePrescriptionRequest) (*Prescription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	date := time.Now().UTC()
	if strings.TrimSpace(req.PrescriptionDate) != "" {
		parsed, err := parseDate(req.PrescriptionDate)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	var created *Prescription
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repo := NewRepository(tx)

		patientID, err := resolvePatient(ctx, repo, req.VisitID, req.PatientID)
		if err != nil {
			return err
		}

		p := newPrescription()
		p.VisitID = req.VisitID
		p.PatientID = patientID
		p.PrescriptionDate = date
		p.Diagnosis = strings.TrimSpace(req.Diagnosis)
		p.Notes = strings.TrimSpace(req.Notes)
		if err := repo.Insert(ctx, p); err != nil {
			return err
		}

		for _, in := range req.Items {
			in.normalize()
			it, err := repo.InsertItem(ctx, p.ID, in)
			if err != nil {
				return err
			}
			p.Items = append(p.Items, *it)
		}
		for _, in := range req.LabTests {
			in.Notes = strings.TrimSpace(in.Notes)
			lt, err := repo.InsertLabTest(ctx, p.ID, in)
			if err != nil {
				return err
			}
			p.LabTests = append(p.LabTests, *lt)
		}
		for _, in := range req.ImagingStudies {
			in.Comments = strings.TrimSpace(in.Comments)
			is, err := repo.InsertImagingStudy(ctx, p.ID, in)
			if err != nil {
				return err
			}
			p.ImagingStudies = append(p.ImagingStudies, *is)
		}

		created = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordPrescriptionOperation(ctx, "create")
	log.Info().
		Int64("prescription_id", created.ID).
		Int64("patient_id", created.PatientID).
		Int("items", len(created.Items)).
		Msg("prescription created")

	messaging.PublishOrLog(ctx, s.publisher, messaging.EventPrescriptionCreated, messaging.PrescriptionCreatedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventPrescriptionCreated),
		Data: messaging.PrescriptionCreatedData{
			PrescriptionID:    created.ID,
			PatientID:         created.PatientID,
			VisitID:           created.VisitID,
			MedicineCount:     len(created.Items),
			LabTestCount:      len(created.LabTests),
			ImagingStudyCount: len(created.ImagingStudies),
			CreatedAt:         created.CreatedAt,
		},
	})
	return created, nil
}

func resolvePatient(ctx context.Context, repo *Repository, visitID *int64, patientID int64) (int64, error) {
	if visitID != nil {
		owner, err := repo.VisitPatient(ctx, *visitID)
		if err != nil {
			return 0, err
		}
		if patientID == 0 {
			patientID = owner
		} else if patientID != owner {
			return 0, ErrVisitPatientMismatch
		}
	}
	if patientID <= 0 {
		return 0, ErrPatientRequired
	}

	exists, err := repo.PatientExists(ctx, patientID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrUnknownPatient
	}
	return patientID, nil
}

func (s *Service) UpdatePrescription(ctx context.Context, id int64, req UpdatePrescriptionRequest) (*Prescription, error) {
	var date *time.Time
	if req.PrescriptionDate != nil {
		parsed, err := parseDate(*req.PrescriptionDate)
		if err != nil {
			return nil, err
		}
		date = &parsed
	}

	if _, err := s.repo.Update(ctx, id, req, date); err != nil {
		return nil, err
	}
	s.metrics.RecordPrescriptionOperation(ctx, "update")
	return s.repo.Assemble(ctx, id)
}

// DeletePrescription removes the prescription and all of its line items.
func (s *Service) DeletePrescription(ctx context.Context, id int64) error {
	var counts ChildCounts
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repo := NewRepository(tx)
		var err error
		if counts, err = repo.DeleteChildren(ctx, id); err != nil {
			return err
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.metrics.RecordPrescriptionOperation(ctx, "delete")
	log.Info().
		Int64("prescription_id", id).
		Int64("items", counts.Items).
		Int64("lab_tests", counts.LabTests).
		Int64("imaging_studies", counts.ImagingStudies).
		Msg("prescription deleted")
	return nil
}

func (s *Service) AddItem(ctx context.Context, prescriptionID int64, in ItemInput) (*Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return nil, err
	}
	in.normalize()
	return s.repo.InsertItem(ctx, prescriptionID, in)
}

func (s *Service) UpdateItem(ctx context.Context, prescriptionID, itemID int64, req UpdateItemRequest) (*Item, error) {
	if req.MedicineID != nil && *req.MedicineID <= 0 {
		return nil, ErrMedicineRequired
	}
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return nil, err
	}
	return s.repo.UpdateItem(ctx, prescriptionID, itemID, req)
}

func (s *Service) DeleteItem(ctx context.Context, prescriptionID, itemID int64) error {
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return err
	}
	return s.repo.DeleteItem(ctx, prescriptionID, itemID)
}

func (s *Service) AddLabTest(ctx context.Context, prescriptionID int64, in LabTestInput) (*LabTestItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return nil, err
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return s.repo.InsertLabTest(ctx, prescriptionID, in)
}

func (s *Service) DeleteLabTest(ctx context.Context, prescriptionID, labTestItemID int64) error {
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return err
	}
	return s.repo.DeleteLabTest(ctx, prescriptionID, labTestItemID)
}

func (s *Service) AddImagingStudy(ctx context.Context, prescriptionID int64, in ImagingInput) (*ImagingItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return nil, err
	}
	in.Comments = strings.TrimSpace(in.Comments)
	return s.repo.InsertImagingStudy(ctx, prescriptionID, in)
}

func (s *Service) UpdateImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64, req UpdateImagingRequest) (*ImagingItem, error) {
	if req.Comments == nil {
		return nil, ErrNoFieldsToUpdate
	}
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return nil, err
	}
	return s.repo.UpdateImagingStudy(ctx, prescriptionID, imagingItemID, strings.TrimSpace(*req.Comments))
}

func (s *Service) DeleteImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64) error {
	if err := s.repo.Exists(ctx, prescriptionID); err != nil {
		return err
	}
	return s.repo.DeleteImagingStudy(ctx, prescriptionID, imagingItemID)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
