// Package catalog manages the reference lists prescriptions point at:
// medicines, lab tests and imaging studies.
package catalog

import "time"

type Medicine struct {
	ID          int64     `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	GenericName string    `json:"generic_name" yaml:"generic_name"`
	Form        string    `json:"form" yaml:"form"`
	Strength    string    `json:"strength" yaml:"strength"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

type LabTest struct {
	ID          int64     `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Category    string    `json:"category" yaml:"category"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

type ImagingStudy struct {
	ID          int64     `json:"id" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Modality    string    `json:"modality" yaml:"modality"`
	BodyPart    string    `json:"body_part" yaml:"body_part"`
	Description string    `json:"description" yaml:"description"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Catalog is the layout of the seed file.
type Catalog struct {
	Medicines      []Medicine     `yaml:"medicines"`
	LabTests       []LabTest      `yaml:"lab_tests"`
	ImagingStudies []ImagingStudy `yaml:"imaging_studies"`
}

// SeedResult counts the rows written by a seed run.
type SeedResult struct {
	Medicines      int `json:"medicines"`
	LabTests       int `json:"lab_tests"`
	ImagingStudies int `json:"imaging_studies"`
}
