package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

// RepositoryInterface defines the contract for catalog data access
type RepositoryInterface interface {
	ListMedicines(ctx context.Context, search string) ([]Medicine, error)
	CreateMedicine(ctx context.Context, m Medicine) (*Medicine, error)
	ListLabTests(ctx context.Context, search string) ([]LabTest, error)
	CreateLabTest(ctx context.Context, lt LabTest) (*LabTest, error)
	ListImagingStudies(ctx context.Context, search string) ([]ImagingStudy, error)
	CreateImagingStudy(ctx context.Context, s ImagingStudy) (*ImagingStudy, error)
}

var _ RepositoryInterface = (*Repository)(nil)

// ServiceInterface is what the handler needs.
type ServiceInterface interface {
	RepositoryInterface
	Seed(ctx context.Context, c Catalog) (*SeedResult, error)
}

type Service struct {
	repo RepositoryInterface
	tx   db.TxRunner
}

func NewService(repo RepositoryInterface, tx db.TxRunner) *Service {
	return &Service{repo: repo, tx: tx}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) ListMedicines(ctx context.Context, search string) ([]Medicine, error) {
	return s.repo.ListMedicines(ctx, search)
}

func (s *Service) CreateMedicine(ctx context.Context, m Medicine) (*Medicine, error) {
	if m.Name = strings.TrimSpace(m.Name); m.Name == "" {
		return nil, ErrNameRequired
	}
	created, err := s.repo.CreateMedicine(ctx, m)
	if err != nil {
		return nil, duplicate("medicine", err)
	}
	return created, nil
}

func (s *Service) ListLabTests(ctx context.Context, search string) ([]LabTest, error) {
	return s.repo.ListLabTests(ctx, search)
}

func (s *Service) CreateLabTest(ctx context.Context, lt LabTest) (*LabTest, error) {
	if lt.Name = strings.TrimSpace(lt.Name); lt.Name == "" {
		return nil, ErrNameRequired
	}
	created, err := s.repo.CreateLabTest(ctx, lt)
	if err != nil {
		return nil, duplicate("lab test", err)
	}
	return created, nil
}

func (s *Service) ListImagingStudies(ctx context.Context, search string) ([]ImagingStudy, error) {
	return s.repo.ListImagingStudies(ctx, search)
}

func (s *Service) CreateImagingStudy(ctx context.Context, is ImagingStudy) (*ImagingStudy, error) {
	if is.Name = strings.TrimSpace(is.Name); is.Name == "" {
		return nil, ErrNameRequired
	}
	created, err := s.repo.CreateImagingStudy(ctx, is)
	if err != nil {
		return nil, duplicate("imaging study", err)
	}
	return created, nil
}

// Seed upserts every entry of c by name in one transaction.
func (s *Service) Seed(ctx context.Context, c Catalog) (*SeedResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	result := &SeedResult{}
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		repo := NewRepository(tx)
		for _, m := range c.Medicines {
			if err := repo.UpsertMedicine(ctx, m); err != nil {
				return err
			}
			result.Medicines++
		}
		for _, lt := range c.LabTests {
			if err := repo.UpsertLabTest(ctx, lt); err != nil {
				return err
			}
			result.LabTests++
		}
		for _, is := range c.ImagingStudies {
			if err := repo.UpsertImagingStudy(ctx, is); err != nil {
				return err
			}
			result.ImagingStudies++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("medicines", result.Medicines).
		Int("lab_tests", result.LabTests).
		Int("imaging_studies", result.ImagingStudies).
		Msg("catalog seeded")
	return result, nil
}

// LoadFile reads a catalog seed file.
func LoadFile(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML catalog and trims entry names.
func Parse(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	for i := range c.Medicines {
		c.Medicines[i].Name = strings.TrimSpace(c.Medicines[i].Name)
	}
	for i := range c.LabTests {
		c.LabTests[i].Name = strings.TrimSpace(c.LabTests[i].Name)
	}
	for i := range c.ImagingStudies {
		c.ImagingStudies[i].Name = strings.TrimSpace(c.ImagingStudies[i].Name)
	}
	return c, c.Validate()
}

// Validate rejects unnamed or repeated entries within a section.
func (c Catalog) Validate() error {
	check := func(section string, names []string) error {
		seen := make(map[string]bool, len(names))
		for i, n := range names {
			if n == "" {
				return apperr.Validation(fmt.Sprintf("%s[%d]: name is required", section, i))
			}
			key := strings.ToLower(n)
			if seen[key] {
				return apperr.Validation(fmt.Sprintf("%s: duplicate name %q", section, n))
			}
			seen[key] = true
		}
		return nil
	}

	names := func(n int, at func(int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = at(i)
		}
		return out
	}

	if err := check("medicines", names(len(c.Medicines), func(i int) string { return c.Medicines[i].Name })); err != nil {
		return err
	}
	if err := check("lab_tests", names(len(c.LabTests), func(i int) string { return c.LabTests[i].Name })); err != nil {
		return err
	}
	return check("imaging_studies", names(len(c.ImagingStudies), func(i int) string { return c.ImagingStudies[i].Name }))
}
