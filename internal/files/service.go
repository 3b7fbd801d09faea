package files

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/metrics"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
)

type Service struct {
	repo      *Repository
	tx        db.TxRunner
	storage   *Storage
	publisher messaging.PublisherInterface
	telemetry *telemetry.Metrics
}

func NewService(q db.Querier, tx db.TxRunner, storage *Storage, publisher messaging.PublisherInterface, m *telemetry.Metrics) *Service {
	return &Service{
		repo:      NewRepository(q),
		tx:        tx,
		storage:   storage,
		publisher: publisher,
		telemetry: m,
	}
}

// Upload moves staged files into the patient's directory and then inserts
// their metadata rows in one transaction. If the insert fails the moved files
// are removed again. Files still staged are left to the caller.
func (s *Service) Upload(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "files.upload", oteltrace.WithAttributes(
		attribute.Int64("patient.id", patientID),
		attribute.Int("files.count", len(req.Files)),
	))
	defer span.End()

	if len(req.Files) == 0 {
		return nil, ErrMissingFile
	}
	if err := s.checkOwner(ctx, patientID, req.VisitID); err != nil {
		return nil, err
	}

	stored := make([]PatientFile, 0, len(req.Files))
	for _, in := range req.Files {
		rel := s.storage.NewPath(patientID, in.OriginalName)
		if err := s.storage.Promote(in.Staged, rel); err != nil {
			s.removeAll(stored)
			span.RecordError(err)
			span.SetStatus(codes.Error, "disk write failed")
			return nil, apperr.Internal("failed to store file", err)
		}
		stored = append(stored, PatientFile{
			PatientID:    patientID,
			VisitID:      req.VisitID,
			FileName:     path.Base(rel),
			OriginalName: in.OriginalName,
			FilePath:     rel,
			MimeType:     in.MimeType,
			FileSize:     in.Size,
			Description:  req.Description,
		})
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repo := NewRepository(tx)
		for i := range stored {
			if err := repo.Insert(ctx, &stored[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.removeAll(stored)
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata insert failed")
		return nil, err
	}

	for _, f := range stored {
		s.telemetry.RecordFileOperation(ctx, "upload")
		s.telemetry.RecordUploadedBytes(ctx, f.MimeType, f.FileSize)
		metrics.RecordUploadedFile(f.FileSize)

		log.Info().
			Int64("file_id", f.ID).
			Int64("patient_id", patientID).
			Str("mime_type", f.MimeType).
			Int64("size", f.FileSize).
			Msg("file uploaded")

		messaging.PublishOrLog(ctx, s.publisher, messaging.EventFileUploaded, messaging.FileUploadedEvent{
			BaseEvent: messaging.NewBaseEvent(messaging.EventFileUploaded),
			Data: messaging.FileUploadedData{
				FileID:     f.ID,
				PatientID:  patientID,
				VisitID:    f.VisitID,
				MimeType:   f.MimeType,
				FileSize:   f.FileSize,
				UploadedAt: f.UploadedAt,
			},
		})
	}
	return stored, nil
}

// RecordRejection counts an upload turned away by validation.
func (s *Service) RecordRejection(ctx context.Context, err error) {
	code := string(apperr.KindOf(err))
	var e *apperr.Error
	if errors.As(err, &e) && e.Code != "" {
		code = e.Code
	}
	s.telemetry.RecordUploadRejection(ctx, code)
}

func (s *Service) checkOwner(ctx context.Context, patientID int64, visitID *int64) error {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPatientNotFound
	}
	if visitID == nil {
		return nil
	}
	owner, err := s.repo.VisitPatient(ctx, *visitID)
	if err != nil {
		return err
	}
	if owner != patientID {
		return ErrVisitPatientMismatch
	}
	return nil
}

func (s *Service) removeAll(files []PatientFile) {
	for _, f := range files {
		if err := s.storage.Remove(f.FilePath); err != nil {
			log.Error().Err(err).Str("path", f.FilePath).Msg("failed to remove file after aborted upload")
		}
	}
}

func (s *Service) ListFiles(ctx context.Context, patientID int64, visitID *int64) ([]PatientFile, error) {
	exists, err := s.repo.PatientExists(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrPatientNotFound
	}
	return s.repo.List(ctx, patientID, visitID)
}

func (s *Service) GetFile(ctx context.Context, patientID, fileID int64) (*PatientFile, error) {
	return s.repo.Get(ctx, patientID, fileID)
}

// OpenFile returns the metadata and an open handle on the stored bytes. The
// caller closes the handle.
func (s *Service) OpenFile(ctx context.Context, patientID, fileID int64) (*PatientFile, *os.File, error) {
	f, err := s.repo.Get(ctx, patientID, fileID)
	if err != nil {
		return nil, nil, err
	}
	fh, err := s.storage.Open(f.FilePath)
	if err != nil {
		if apperr.IsNotFound(err) {
			log.Warn().Int64("file_id", fileID).Str("path", f.FilePath).Msg("file metadata references missing content")
		}
		return nil, nil, err
	}
	s.telemetry.RecordFileOperation(ctx, "download")
	return f, fh, nil
}

// DeleteFile removes the metadata row, then the bytes. A failed disk delete
// is logged and does not fail the request.
func (s *Service) DeleteFile(ctx context.Context, patientID, fileID int64) error {
	filePath, err := s.repo.Delete(ctx, patientID, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.Remove(filePath); err != nil {
		log.Warn().Err(err).Int64("file_id", fileID).Str("path", filePath).Msg("failed to remove file from disk")
	}

	s.telemetry.RecordFileOperation(ctx, "delete")
	log.Info().Int64("file_id", fileID).Int64("patient_id", patientID).Msg("file deleted")

	messaging.PublishOrLog(ctx, s.publisher, messaging.EventFileDeleted, messaging.FileDeletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventFileDeleted),
		Data:      messaging.FileDeletedData{FileID: fileID, PatientID: patientID, DeletedAt: time.Now().UTC()},
	})
	return nil
}
