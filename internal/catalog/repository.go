package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func searchClause(search string) (string, []interface{}) {
	if search = strings.TrimSpace(search); search == "" {
		return "", nil
	}
	return "WHERE name ILIKE $1", []interface{}{"%" + search + "%"}
}

func (r *Repository) ListMedicines(ctx context.Context, search string) ([]Medicine, error) {
	where, args := searchClause(search)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(generic_name, ''), COALESCE(form, ''), COALESCE(strength, ''), created_at
		FROM medicines `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query medicines: %w", err))
	}
	defer rows.Close()

	medicines := []Medicine{}
	for rows.Next() {
		var m Medicine
		if err := rows.Scan(&m.ID, &m.Name, &m.GenericName, &m.Form, &m.Strength, &m.CreatedAt); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan medicine: %w", err))
		}
		medicines = append(medicines, m)
	}
	return medicines, db.Classify(rows.Err())
}

func (r *Repository) CreateMedicine(ctx context.Context, m Medicine) (*Medicine, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO medicines (name, generic_name, form, strength)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		m.Name, nullIfEmpty(m.GenericName), nullIfEmpty(m.Form), nullIfEmpty(m.Strength),
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert medicine: %w", err))
	}
	return &m, nil
}

func (r *Repository) UpsertMedicine(ctx context.Context, m Medicine) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medicines (name, generic_name, form, strength)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET generic_name = EXCLUDED.generic_name, form = EXCLUDED.form, strength = EXCLUDED.strength`,
		m.Name, nullIfEmpty(m.GenericName), nullIfEmpty(m.Form), nullIfEmpty(m.Strength))
	if err != nil {
		return db.Classify(fmt.Errorf("failed to upsert medicine %q: %w", m.Name, err))
	}
	return nil
}

func (r *Repository) ListLabTests(ctx context.Context, search string) ([]LabTest, error) {
	where, args := searchClause(search)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), COALESCE(description, ''), created_at
		FROM lab_tests `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query lab tests: %w", err))
	}
	defer rows.Close()

	tests := []LabTest{}
	for rows.Next() {
		var lt LabTest
		if err := rows.Scan(&lt.ID, &lt.Name, &lt.Category, &lt.Description, &lt.CreatedAt); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan lab test: %w", err))
		}
		tests = append(tests, lt)
	}
	return tests, db.Classify(rows.Err())
}

func (r *Repository) CreateLabTest(ctx context.Context, lt LabTest) (*LabTest, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO lab_tests (name, category, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		lt.Name, nullIfEmpty(lt.Category), nullIfEmpty(lt.Description),
	).Scan(&lt.ID, &lt.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert lab test: %w", err))
	}
	return &lt, nil
}

func (r *Repository) UpsertLabTest(ctx context.Context, lt LabTest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lab_tests (name, category, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET category = EXCLUDED.category, description = EXCLUDED.description`,
		lt.Name, nullIfEmpty(lt.Category), nullIfEmpty(lt.Description))
	if err != nil {
		return db.Classify(fmt.Errorf("failed to upsert lab test %q: %w", lt.Name, err))
	}
	return nil
}

func (r *Repository) ListImagingStudies(ctx context.Context, search string) ([]ImagingStudy, error) {
	where, args := searchClause(search)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(modality, ''), COALESCE(body_part, ''), COALESCE(description, ''), created_at
		FROM imaging_studies `+where+` ORDER BY name`, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to query imaging studies: %w", err))
	}
	defer rows.Close()

	studies := []ImagingStudy{}
	for rows.Next() {
		var s ImagingStudy
		if err := rows.Scan(&s.ID, &s.Name, &s.Modality, &s.BodyPart, &s.Description, &s.CreatedAt); err != nil {
			return nil, db.Classify(fmt.Errorf("failed to scan imaging study: %w", err))
		}
		studies = append(studies, s)
	}
	return studies, db.Classify(rows.Err())
}

func (r *Repository) CreateImagingStudy(ctx context.Context, s ImagingStudy) (*ImagingStudy, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO imaging_studies (name, modality, body_part, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		s.Name, nullIfEmpty(s.Modality), nullIfEmpty(s.BodyPart), nullIfEmpty(s.Description),
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to insert imaging study: %w", err))
	}
	return &s, nil
}

func (r *Repository) UpsertImagingStudy(ctx context.Context, s ImagingStudy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO imaging_studies (name, modality, body_part, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET modality = EXCLUDED.modality, body_part = EXCLUDED.body_part, description = EXCLUDED.description`,
		s.Name, nullIfEmpty(s.Modality), nullIfEmpty(s.BodyPart), nullIfEmpty(s.Description))
	if err != nil {
		return db.Classify(fmt.Errorf("failed to upsert imaging study %q: %w", s.Name, err))
	}
	return nil
}
