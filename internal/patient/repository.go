package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

const patientColumns = `id, first_name, last_name, gender, date_of_birth, phone, email, address,
	blood_type, allergies, medical_history, notes, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*PatientResponse, error) {
	var (
		p              PatientResponse
		gender         sql.NullString
		dob            sql.NullTime
		phone          sql.NullString
		email          sql.NullString
		address        sql.NullString
		bloodType      sql.NullString
		allergies      sql.NullString
		medicalHistory sql.NullString
		notes          sql.NullString
		updatedAt      sql.NullTime
	)

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&gender,
		&dob,
		&phone,
		&email,
		&address,
		&bloodType,
		&allergies,
		&medicalHistory,
		&notes,
		&p.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Gender = gender.String
	if dob.Valid {
		s := dob.Time.Format(dateLayout)
		p.DateOfBirth = &s
	}
	p.Phone = phone.String
	p.Email = email.String
	p.Address = address.String
	p.BloodType = bloodType.String
	p.Allergies = allergies.String
	p.MedicalHistory = medicalHistory.String
	p.Notes = notes.String
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (r *Repository) CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
	query := `
		INSERT INTO patients
		(first_name, last_name, gender, date_of_birth, phone, email, address, blood_type, allergies, medical_history, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + patientColumns

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query,
		req.FirstName,
		req.LastName,
		nullIfEmpty(req.Gender),
		nullIfEmpty(req.DateOfBirth),
		nullIfEmpty(req.Phone),
		nullIfEmpty(req.Email),
		nullIfEmpty(req.Address),
		nullIfEmpty(req.BloodType),
		nullIfEmpty(req.Allergies),
		nullIfEmpty(req.MedicalHistory),
		nullIfEmpty(req.Notes),
	))
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert patient: %w", err))
	}
	return patient, nil
}

// ListPatients returns one page of non-deleted patients, newest first, and the
// total number of matches. search matches names, phone and email.
func (r *Repository) ListPatients(ctx context.Context, limit, offset int, search string) ([]PatientResponse, int, error) {
	where := "WHERE deleted_at IS NULL"
	args := []interface{}{}
	if search = strings.TrimSpace(search); search != "" {
		args = append(args, "%"+search+"%")
		where += ` AND (first_name ILIKE $1 OR last_name ILIKE $1
			OR (first_name || ' ' || last_name) ILIKE $1 OR phone ILIKE $1 OR email ILIKE $1)`
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM patients "+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("failed to count patients: %w", err))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM patients
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, patientColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("failed to query patients: %w", err))
	}
	defer rows.Close()

	patients := []PatientResponse{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.Classify(fmt.Errorf("failed to scan patient: %w", err))
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("error iterating patients: %w", err))
	}

	return patients, total, nil
}

func (r *Repository) GetPatient(ctx context.Context, id int64) (*PatientResponse, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND deleted_at IS NULL`

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to get patient: %w", err))
	}
	return patient, nil
}

func (r *Repository) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error) {
	var b db.UpdateBuilder
	setText := func(column string, v *string) {
		if v != nil {
			b.Set(column, nullIfEmpty(strings.TrimSpace(*v)))
		}
	}

	setText("first_name", req.FirstName)
	setText("last_name", req.LastName)
	if req.Gender != nil {
		b.Set("gender", nullIfEmpty(strings.ToLower(*req.Gender)))
	}
	setText("date_of_birth", req.DateOfBirth)
	setText("phone", req.Phone)
	setText("email", req.Email)
	setText("address", req.Address)
	setText("blood_type", req.BloodType)
	setText("allergies", req.Allergies)
	setText("medical_history", req.MedicalHistory)
	setText("notes", req.Notes)

	if b.Empty() {
		return nil, ErrNoFieldsToUpdate
	}
	b.Set("updated_at", time.Now())

	query := fmt.Sprintf(`
		UPDATE patients
		SET %s
		WHERE id = %s AND deleted_at IS NULL
		RETURNING %s`, b.SetClause(), b.Arg(id), patientColumns)

	patient, err := scanPatient(r.db.QueryRowContext(ctx, query, b.Args()...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to update patient: %w", err))
	}
	return patient, nil
}

// DeletePatient soft deletes the patient. Deleting an already deleted patient
// reports not found.
func (r *Repository) DeletePatient(ctx context.Context, id int64) (time.Time, error) {
	var deletedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE patients
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING deleted_at`, id).Scan(&deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrPatientNotFound
	}
	if err != nil {
		return time.Time{}, db.Classify(fmt.Errorf("failed to delete patient: %w", err))
	}
	return deletedAt, nil
}
