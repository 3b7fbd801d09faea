package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

const fileColumns = `id, patient_id, visit_id, file_name, original_name, file_path, mime_type, file_size,
	COALESCE(description, ''), uploaded_at`

// Repository runs patient_files queries against a pool or a transaction.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (*PatientFile, error) {
	var (
		f       PatientFile
		visitID sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.PatientID, &visitID, &f.FileName, &f.OriginalName, &f.FilePath,
		&f.MimeType, &f.FileSize, &f.Description, &f.UploadedAt)
	if err != nil {
		return nil, err
	}
	if visitID.Valid {
		f.VisitID = &visitID.Int64
	}
	return &f, nil
}

func (r *Repository) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID).Scan(&exists)
	if err != nil {
		return false, db.Classify(fmt.Errorf("failed to look up patient: %w", err))
	}
	return exists, nil
}

// VisitPatient returns the patient a visit belongs to.
func (r *Repository) VisitPatient(ctx context.Context, visitID int64) (int64, error) {
	var patientID int64
	err := r.db.QueryRowContext(ctx, `SELECT patient_id FROM visits WHERE id = $1`, visitID).Scan(&patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownVisit
	}
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to look up visit: %w", err))
	}
	return patientID, nil
}

// Insert stores f and fills in its id and upload time.
func (r *Repository) Insert(ctx context.Context, f *PatientFile) error {
	var description interface{}
	if f.Description != "" {
		description = f.Description
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO patient_files (patient_id, visit_id, file_name, original_name, file_path, mime_type, file_size, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at`,
		f.PatientID, f.VisitID, f.FileName, f.OriginalName, f.FilePath, f.MimeType, f.FileSize, description,
	).Scan(&f.ID, &f.UploadedAt)
	if err != nil {
		return db.Classify(fmt.Errorf("failed to insert file metadata: %w", err))
	}
	return nil
}

// List returns the files of a patient, newest first, optionally restricted
// to one visit.
func (r *Repository) List(ctx context.Context, patientID int64, visitID *int64) ([]PatientFile, error) {
	query := `SELECT ` + fileColumns + ` FROM patient_files WHERE patient_id = $1`
	args := []interface{}{patientID}
	if visitID != nil {
		query += ` AND visit_id = $2`
		args = append(args, *visitID)
	}
	query += ` ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query files: %w", err))
	}
	defer rows.Close()

	files := []PatientFile{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan file: %w", err))
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating files: %w", err))
	}
	return files, nil
}

// Get returns a file only if it belongs to patientID.
func (r *Repository) Get(ctx context.Context, patientID, fileID int64) (*PatientFile, error) {
	f, err := scanFile(r.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM patient_files WHERE id = $1 AND patient_id = $2`, fileID, patientID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to get file: %w", err))
	}
	return f, nil
}

// Delete removes the metadata row and returns the storage path it held.
func (r *Repository) Delete(ctx context.Context, patientID, fileID int64) (string, error) {
	var filePath string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM patient_files WHERE id = $1 AND patient_id = $2 RETURNING file_path`, fileID, patientID,
	).Scan(&filePath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFileNotFound
	}
	if err != nil {
		return "", db.Classify(fmt.Errorf("failed to delete file metadata: %w", err))
	}
	return filePath, nil
}

// Referenced returns the subset of paths that a metadata row still points to.
func (r *Repository) Referenced(ctx context.Context, paths []string) (map[string]bool, error) {
	refs := make(map[string]bool, len(paths))
	if len(paths) == 0 {
		return refs, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT file_path FROM patient_files WHERE file_path = ANY($1)`, pq.Array(paths))
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query referenced files: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan file path: %w", err))
		}
		refs[p] = true
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating referenced files: %w", err))
	}
	return refs, nil
}
