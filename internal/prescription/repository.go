package prescription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

// Repository runs prescription queries against a pool or a transaction.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

const headerColumns = `id, visit_id, patient_id, prescription_date,
	COALESCE(diagnosis, ''), COALESCE(notes, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHeader(row rowScanner) (*Prescription, error) {
	p := newPrescription()
	var (
		visitID   sql.NullInt64
		updatedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &visitID, &p.PatientID, &p.PrescriptionDate, &p.Diagnosis, &p.Notes, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if visitID.Valid {
		p.VisitID = &visitID.Int64
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return p, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetHeader loads the prescription row without its line items.
func (r *Repository) GetHeader(ctx context.Context, id int64) (*Prescription, error) {
	p, err := scanHeader(r.db.QueryRowContext(ctx,
		`SELECT `+headerColumns+` FROM prescriptions WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to get prescription: %w", err))
	}
	return p, nil
}

// Assemble loads the prescription and its three line item collections.
func (r *Repository) Assemble(ctx context.Context, id int64) (*Prescription, error) {
	p, err := r.GetHeader(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Items, err = r.ListItems(ctx, id); err != nil {
		return nil, err
	}
	if p.LabTests, err = r.ListLabTests(ctx, id); err != nil {
		return nil, err
	}
	if p.ImagingStudies, err = r.ListImagingStudies(ctx, id); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) ListItems(ctx context.Context, prescriptionID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pi.id, pi.prescription_id, pi.medicine_id, m.name,
			COALESCE(pi.dosage, ''), COALESCE(pi.frequency, ''), COALESCE(pi.duration, ''), COALESCE(pi.instructions, '')
		FROM prescription_items pi
		JOIN medicines m ON m.id = pi.medicine_id
		WHERE pi.prescription_id = $1
		ORDER BY pi.id`, prescriptionID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query prescription items: %w", err))
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan prescription item: %w", err))
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating prescription items: %w", err))
	}
	return items, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID, &it.MedicineName,
		&it.Dosage, &it.Frequency, &it.Duration, &it.Instructions)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repository) ListLabTests(ctx context.Context, prescriptionID int64) ([]LabTestItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT plt.id, plt.prescription_id, plt.lab_test_id, lt.name, COALESCE(plt.notes, '')
		FROM prescription_lab_tests plt
		JOIN lab_tests lt ON lt.id = plt.lab_test_id
		WHERE plt.prescription_id = $1
		ORDER BY plt.id`, prescriptionID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query prescription lab tests: %w", err))
	}
	defer rows.Close()

	tests := []LabTestItem{}
	for rows.Next() {
		var lt LabTestItem
		if err := rows.Scan(&lt.ID, &lt.PrescriptionID, &lt.LabTestID, &lt.LabTestName, &lt.Notes); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan prescription lab test: %w", err))
		}
		tests = append(tests, lt)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating prescription lab tests: %w", err))
	}
	return tests, nil
}

func (r *Repository) ListImagingStudies(ctx context.Context, prescriptionID int64) ([]ImagingItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pis.id, pis.prescription_id, pis.imaging_study_id, ist.name, COALESCE(pis.comments, '')
		FROM prescription_imaging_studies pis
		JOIN imaging_studies ist ON ist.id = pis.imaging_study_id
		WHERE pis.prescription_id = $1
		ORDER BY pis.id`, prescriptionID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query prescription imaging studies: %w", err))
	}
	defer rows.Close()

	studies := []ImagingItem{}
	for rows.Next() {
		var is ImagingItem
		if err := rows.Scan(&is.ID, &is.PrescriptionID, &is.ImagingStudyID, &is.ImagingStudyName, &is.Comments); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan prescription imaging study: %w", err))
		}
		studies = append(studies, is)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating prescription imaging studies: %w", err))
	}
	return studies, nil
}

func (r *Repository) queryIDs(ctx context.Context, query string, arg int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query prescription ids: %w", err))
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan prescription id: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("error iterating prescription ids: %w", err))
	}
	return ids, nil
}

// IDsByVisit returns the prescriptions of a visit, newest first.
func (r *Repository) IDsByVisit(ctx context.Context, visitID int64) ([]int64, error) {
	return r.queryIDs(ctx, `
		SELECT id FROM prescriptions
		WHERE visit_id = $1
		ORDER BY prescription_date DESC, id DESC`, visitID)
}

// IDsByPatient returns the prescriptions of a patient, newest first.
func (r *Repository) IDsByPatient(ctx context.Context, patientID int64) ([]int64, error) {
	return r.queryIDs(ctx, `
		SELECT id FROM prescriptions
		WHERE patient_id = $1
		ORDER BY prescription_date DESC, id DESC`, patientID)
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

func (r *Repository) PatientExists(ctx context.Context, patientID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID).Scan(&exists)
	if err != nil {
		return false, db.Classify(fmt.Errorf("failed to look up patient: %w", err))
	}
	return exists, nil
}

// Insert stores the prescription row and fills in its id and timestamps.
func (r *Repository) Insert(ctx context.Context, p *Prescription) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO prescriptions (visit_id, patient_id, prescription_date, diagnosis, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, prescription_date, created_at`,
		p.VisitID, p.PatientID, p.PrescriptionDate, nullIfEmpty(p.Diagnosis), nullIfEmpty(p.Notes),
	).Scan(&p.ID, &p.PrescriptionDate, &p.CreatedAt)
	if err != nil {
		return db.Classify(fmt.Errorf("failed to insert prescription: %w", err))
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, id int64, req UpdatePrescriptionRequest, date *time.Time) (*Prescription, error) {
	var b db.UpdateBuilder
	if date != nil {
		b.Set("prescription_date", *date)
	}
	if req.Diagnosis != nil {
		b.Set("diagnosis", nullIfEmpty(strings.TrimSpace(*req.Diagnosis)))
	}
	if req.Notes != nil {
		b.Set("notes", nullIfEmpty(strings.TrimSpace(*req.Notes)))
	}
	if b.Empty() {
		return nil, ErrNoFieldsToUpdate
	}
	b.Set("updated_at", time.Now())

	query := fmt.Sprintf(`UPDATE prescriptions SET %s WHERE id = %s RETURNING %s`,
		b.SetClause(), b.Arg(id), headerColumns)

	p, err := scanHeader(r.db.QueryRowContext(ctx, query, b.Args()...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to update prescription: %w", err))
	}
	return p, nil
}

// ChildCounts reports rows removed from each line item table.
type ChildCounts struct {
	Items          int64
	LabTests       int64
	ImagingStudies int64
}

// DeleteChildren removes every line item of a prescription. The three
// deletes are independent of each other.
func (r *Repository) DeleteChildren(ctx context.Context, prescriptionID int64) (ChildCounts, error) {
	var counts ChildCounts
	var err error

	if counts.Items, err = r.execCount(ctx, "prescription items",
		`DELETE FROM prescription_items WHERE prescription_id = $1`, prescriptionID); err != nil {
		return counts, err
	}
	if counts.LabTests, err = r.execCount(ctx, "prescription lab tests",
		`DELETE FROM prescription_lab_tests WHERE prescription_id = $1`, prescriptionID); err != nil {
		return counts, err
	}
	if counts.ImagingStudies, err = r.execCount(ctx, "prescription imaging studies",
		`DELETE FROM prescription_imaging_studies WHERE prescription_id = $1`, prescriptionID); err != nil {
		return counts, err
	}
	return counts, nil
}

// Delete removes the prescription row. Its line items must already be gone.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	n, err := r.execCount(ctx, "prescription", `DELETE FROM prescriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPrescriptionNotFound
	}
	return nil
}

func (r *Repository) execCount(ctx context.Context, what, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to delete %s: %w", what, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to get rows affected: %w", err))
	}
	return n, nil
}

// Exists returns ErrPrescriptionNotFound when id is unknown.
func (r *Repository) Exists(ctx context.Context, id int64) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM prescriptions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return db.Classify(fmt.Errorf("failed to look up prescription: %w", err))
	}
	if !exists {
		return ErrPrescriptionNotFound
	}
	return nil
}

const itemReturning = `id, prescription_id, medicine_id,
	COALESCE(dosage, '') AS dosage, COALESCE(frequency, '') AS frequency,
	COALESCE(duration, '') AS duration, COALESCE(instructions, '') AS instructions`

// withMedicineName wraps a data-modifying statement that returns item columns
// so the caller also gets the medicine name.
func withMedicineName(stmt string) string {
	return `WITH changed AS (` + stmt + ` RETURNING ` + itemReturning + `)
		SELECT changed.*, m.name FROM changed JOIN medicines m ON m.id = changed.medicine_id`
}

func scanItemWithName(row rowScanner) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.PrescriptionID, &it.MedicineID,
		&it.Dosage, &it.Frequency, &it.Duration, &it.Instructions, &it.MedicineName)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repository) InsertItem(ctx context.Context, prescriptionID int64, in ItemInput) (*Item, error) {
	it, err := scanItemWithName(r.db.QueryRowContext(ctx, withMedicineName(`
		INSERT INTO prescription_items (prescription_id, medicine_id, dosage, frequency, duration, instructions)
		VALUES ($1, $2, $3, $4, $5, $6)`),
		prescriptionID, in.MedicineID, nullIfEmpty(in.Dosage), nullIfEmpty(in.Frequency),
		nullIfEmpty(in.Duration), nullIfEmpty(in.Instructions)))
	if db.IsForeignKeyViolation(err) {
		return nil, ErrUnknownMedicine
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert prescription item: %w", err))
	}
	return it, nil
}

func (r *Repository) UpdateItem(ctx context.Context, prescriptionID, itemID int64, req UpdateItemRequest) (*Item, error) {
	var b db.UpdateBuilder
	if req.MedicineID != nil {
		b.Set("medicine_id", *req.MedicineID)
	}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"dosage", req.Dosage},
		{"frequency", req.Frequency},
		{"duration", req.Duration},
		{"instructions", req.Instructions},
	} {
		if f.value != nil {
			b.Set(f.column, nullIfEmpty(strings.TrimSpace(*f.value)))
		}
	}
	if b.Empty() {
		return nil, ErrNoFieldsToUpdate
	}

	stmt := fmt.Sprintf(`UPDATE prescription_items SET %s WHERE id = %s AND prescription_id = %s`,
		b.SetClause(), b.Arg(itemID), b.Arg(prescriptionID))

	it, err := scanItemWithName(r.db.QueryRowContext(ctx, withMedicineName(stmt), b.Args()...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if db.IsForeignKeyViolation(err) {
		return nil, ErrUnknownMedicine
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to update prescription item: %w", err))
	}
	return it, nil
}

func (r *Repository) DeleteItem(ctx context.Context, prescriptionID, itemID int64) error {
	n, err := r.execCount(ctx, "prescription item",
		`DELETE FROM prescription_items WHERE id = $1 AND prescription_id = $2`, itemID, prescriptionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repository) InsertLabTest(ctx context.Context, prescriptionID int64, in LabTestInput) (*LabTestItem, error) {
	var lt LabTestItem
	err := r.db.QueryRowContext(ctx, `
		WITH changed AS (
			INSERT INTO prescription_lab_tests (prescription_id, lab_test_id, notes)
			VALUES ($1, $2, $3)
			RETURNING id, prescription_id, lab_test_id, COALESCE(notes, '') AS notes
		)
		SELECT changed.id, changed.prescription_id, changed.lab_test_id, lt.name, changed.notes
		FROM changed JOIN lab_tests lt ON lt.id = changed.lab_test_id`,
		prescriptionID, in.LabTestID, nullIfEmpty(in.Notes),
	).Scan(&lt.ID, &lt.PrescriptionID, &lt.LabTestID, &lt.LabTestName, &lt.Notes)
	if db.IsForeignKeyViolation(err) {
		return nil, ErrUnknownLabTest
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert prescription lab test: %w", err))
	}
	return &lt, nil
}

func (r *Repository) DeleteLabTest(ctx context.Context, prescriptionID, labTestItemID int64) error {
	n, err := r.execCount(ctx, "prescription lab test",
		`DELETE FROM prescription_lab_tests WHERE id = $1 AND prescription_id = $2`, labTestItemID, prescriptionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLabTestItemNotFound
	}
	return nil
}

func (r *Repository) InsertImagingStudy(ctx context.Context, prescriptionID int64, in ImagingInput) (*ImagingItem, error) {
	var is ImagingItem
	err := r.db.QueryRowContext(ctx, `
		WITH changed AS (
			INSERT INTO prescription_imaging_studies (prescription_id, imaging_study_id, comments)
			VALUES ($1, $2, $3)
			RETURNING id, prescription_id, imaging_study_id, COALESCE(comments, '') AS comments
		)
		SELECT changed.id, changed.prescription_id, changed.imaging_study_id, ist.name, changed.comments
		FROM changed JOIN imaging_studies ist ON ist.id = changed.imaging_study_id`,
		prescriptionID, in.ImagingStudyID, nullIfEmpty(in.Comments),
	).Scan(&is.ID, &is.PrescriptionID, &is.ImagingStudyID, &is.ImagingStudyName, &is.Comments)
	if db.IsForeignKeyViolation(err) {
		return nil, ErrUnknownImagingStudy
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert prescription imaging study: %w", err))
	}
	return &is, nil
}

func (r *Repository) UpdateImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64, comments string) (*ImagingItem, error) {
	var is ImagingItem
	err := r.db.QueryRowContext(ctx, `
		WITH changed AS (
			UPDATE prescription_imaging_studies SET comments = $1
			WHERE id = $2 AND prescription_id = $3
			RETURNING id, prescription_id, imaging_study_id, COALESCE(comments, '') AS comments
		)
		SELECT changed.id, changed.prescription_id, changed.imaging_study_id, ist.name, changed.comments
		FROM changed JOIN imaging_studies ist ON ist.id = changed.imaging_study_id`,
		nullIfEmpty(comments), imagingItemID, prescriptionID,
	).Scan(&is.ID, &is.PrescriptionID, &is.ImagingStudyID, &is.ImagingStudyName, &is.Comments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrImagingItemNotFound
	}
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to update prescription imaging study: %w", err))
	}
	return &is, nil
}

func (r *Repository) DeleteImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64) error {
	n, err := r.execCount(ctx, "prescription imaging study",
		`DELETE FROM prescription_imaging_studies WHERE id = $1 AND prescription_id = $2`, imagingItemID, prescriptionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrImagingItemNotFound
	}
	return nil
}
