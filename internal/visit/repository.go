package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

const visitColumns = `v.id, v.patient_id, p.first_name || ' ' || p.last_name, v.visit_date, v.visit_type, v.status,
	v.chief_complaint, v.symptoms, v.diagnosis, v.treatment_plan, v.notes, v.created_at, v.updated_at`

const visitFrom = ` FROM visits v JOIN patients p ON p.id = v.patient_id`

// Repository runs visit queries against a pool or a transaction.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVisit(row rowScanner) (*Visit, error) {
	var (
		v              Visit
		chiefComplaint sql.NullString
		symptoms       sql.NullString
		diagnosis      sql.NullString
		treatmentPlan  sql.NullString
		notes          sql.NullString
		updatedAt      sql.NullTime
	)

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.PatientName,
		&v.VisitDate,
		&v.VisitType,
		&v.Status,
		&chiefComplaint,
		&symptoms,
		&diagnosis,
		&treatmentPlan,
		&notes,
		&v.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	v.ChiefComplaint = chiefComplaint.String
	v.Symptoms = symptoms.String
	v.Diagnosis = diagnosis.String
	v.TreatmentPlan = treatmentPlan.String
	v.Notes = notes.String
	if updatedAt.Valid {
		v.UpdatedAt = &updatedAt.Time
	}
	return &v, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// PatientExists reports whether a non-deleted patient has this id.
func (r *Repository) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID).Scan(&exists)
	if err != nil {
		return false, db.Classify(fmt.Errorf("failed to look up patient: %w", err))
	}
	return exists, nil
}

func (r *Repository) CreateVisit(ctx context.Context, req CreateVisitRequest, visitDate time.Time) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO visits (patient_id, visit_date, visit_type, status, chief_complaint, symptoms, diagnosis, treatment_plan, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		req.PatientID, visitDate, req.VisitType, req.Status,
		nullIfEmpty(req.ChiefComplaint), nullIfEmpty(req.Symptoms), nullIfEmpty(req.Diagnosis),
		nullIfEmpty(req.TreatmentPlan), nullIfEmpty(req.Notes),
	).Scan(&id)
	if db.IsForeignKeyViolation(err) {
		return 0, ErrUnknownPatient
	}
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to create visit: %w", err))
	}
	return id, nil
}

func (r *Repository) GetVisit(ctx context.Context, id int64) (*Visit, error) {
	v, err := scanVisit(r.db.QueryRowContext(ctx, `SELECT `+visitColumns+visitFrom+` WHERE v.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVisitNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to get visit: %w", err))
	}
	return v, nil
}

// ListVisits returns one page of visits, newest first, and the total count
// matching the filter.
func (r *Repository) ListVisits(ctx context.Context, filter ListFilter, limit, offset int) ([]Visit, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("v.status = $%d", filter.Status)
	}
	if filter.PatientID != nil {
		add("v.patient_id = $%d", *filter.PatientID)
	}
	if filter.Date != nil {
		add("v.visit_date::date = $%d", filter.Date.Format("2006-01-02"))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+visitFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("failed to count visits: %w", err))
	}

	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY v.visit_date DESC, v.id DESC LIMIT $%d OFFSET $%d`,
		visitColumns, visitFrom, where, len(args)+1, len(args)+2)
	visits, err := r.queryVisits(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return visits, total, nil
}

// ListPatientVisits returns every visit of a patient, newest first.
func (r *Repository) ListPatientVisits(ctx context.Context, patientID int64) ([]Visit, error) {
	return r.queryVisits(ctx,
		`SELECT `+visitColumns+visitFrom+` WHERE v.patient_id = $1 ORDER BY v.visit_date DESC, v.id DESC`, patientID)
}

func (r *Repository) queryVisits(ctx context.Context, query string, args ...interface{}) ([]Visit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query visits: %w", err))
	}
	defer rows.Close()

	visits := []Visit{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan visit: %w", err))
		}
		visits = append(visits, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating visits: %w", err))
	}
	return visits, nil
}

func (r *Repository) UpdateVisit(ctx context.Context, id int64, req UpdateVisitRequest) error {
	var b db.UpdateBuilder
	if req.VisitDate != nil {
		d, err := parseVisitDate(*req.VisitDate)
		if err != nil {
			return err
		}
		b.Set("visit_date", d)
	}
	if req.VisitType != nil {
		b.Set("visit_type", *req.VisitType)
	}
	if req.Status != nil {
		b.Set("status", *req.Status)
	}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"chief_complaint", req.ChiefComplaint},
		{"symptoms", req.Symptoms},
		{"diagnosis", req.Diagnosis},
		{"treatment_plan", req.TreatmentPlan},
		{"notes", req.Notes},
	} {
		if f.value != nil {
			b.Set(f.column, nullIfEmpty(strings.TrimSpace(*f.value)))
		}
	}
	if b.Empty() {
		return ErrNoFieldsToUpdate
	}
	b.Set("updated_at", time.Now())

	query := fmt.Sprintf(`UPDATE visits SET %s WHERE id = %s`, b.SetClause(), b.Arg(id))
	return r.expectOne(ctx, "update visit", query, b.Args()...)
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.expectOne(ctx, "update visit status",
		`UPDATE visits SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
}

func (r *Repository) expectOne(ctx context.Context, what, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return db.Classify(fmt.Errorf("failed to %s: %w", what, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return db.Classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if n == 0 {
		return ErrVisitNotFound
	}
	return nil
}

// DeletePrescriptions bulk deletes the prescriptions of a visit. Their line
// items must already be gone.
func (r *Repository) DeletePrescriptions(ctx context.Context, visitID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE visit_id = $1`, visitID)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to delete visit prescriptions: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	return n, nil
}

// DeleteFiles removes the file metadata rows of a visit and returns the
// storage paths they referenced. Disk bytes are not touched.
func (r *Repository) DeleteFiles(ctx context.Context, visitID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM patient_files WHERE visit_id = $1 RETURNING file_path`, visitID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to delete visit files: %w", err))
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan file path: %w", err))
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating visit files: %w", err))
	}
	return paths, nil
}

// DeleteVisit removes the visit row and returns its patient. No row means
// ErrVisitNotFound.
func (r *Repository) DeleteVisit(ctx context.Context, id int64) (int64, error) {
	var patientID int64
	err := r.db.QueryRowContext(ctx, `DELETE FROM visits WHERE id = $1 RETURNING patient_id`, id).Scan(&patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrVisitNotFound
	}
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to delete visit: %w", err))
	}
	return patientID, nil
}
