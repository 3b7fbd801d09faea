package prescription

import (
	"encoding/json"
	"strings"
	"time"
)

// Prescription is the assembled prescription: scalar fields plus the three
// line item collections. The collections are never nil.
type Prescription struct {
	ID               int64         `json:"id"`
	VisitID          *int64        `json:"visit_id"`
	PatientID        int64         `json:"patient_id"`
	PrescriptionDate time.Time     `json:"prescription_date"`
	Diagnosis        string        `json:"diagnosis"`
	Notes            string        `json:"notes"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
	Items            []Item        `json:"prescription_items"`
	LabTests         []LabTestItem `json:"prescription_lab_tests"`
	ImagingStudies   []ImagingItem `json:"prescription_imaging_studies"`
}

// Item is a medicine line.
type Item struct {
	ID             int64  `json:"id"`
	PrescriptionID int64  `json:"prescription_id"`
	MedicineID     int64  `json:"medicine_id"`
	MedicineName   string `json:"medicine_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Duration       string `json:"duration"`
	Instructions   string `json:"instructions"`
}

type LabTestItem struct {
	ID             int64  `json:"id"`
	PrescriptionID int64  `json:"prescription_id"`
	LabTestID      int64  `json:"lab_test_id"`
	LabTestName    string `json:"lab_test_name"`
	Notes          string `json:"notes"`
}

// ImagingItem is an imaging study line. Comments is the canonical annotation;
// JSON also carries it as "notes" for older clients.
type ImagingItem struct {
	ID               int64
	PrescriptionID   int64
	ImagingStudyID   int64
	ImagingStudyName string
	Comments         string
}

type imagingItemJSON struct {
	ID               int64  `json:"id"`
	PrescriptionID   int64  `json:"prescription_id"`
	ImagingStudyID   int64  `json:"imaging_study_id"`
	ImagingStudyName string `json:"imaging_study_name"`
	Comments         string `json:"comments"`
	Notes            string `json:"notes"`
}

func (i ImagingItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(imagingItemJSON{
		ID:               i.ID,
		PrescriptionID:   i.PrescriptionID,
		ImagingStudyID:   i.ImagingStudyID,
		ImagingStudyName: i.ImagingStudyName,
		Comments:         i.Comments,
		Notes:            i.Comments,
	})
}

func (i *ImagingItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		imagingItemJSON
		Comments *string `json:"comments"`
		Notes    *string `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = ImagingItem{
		ID:               raw.ID,
		PrescriptionID:   raw.PrescriptionID,
		ImagingStudyID:   raw.ImagingStudyID,
		ImagingStudyName: raw.ImagingStudyName,
	}
	if c := pickComments(raw.Comments, raw.Notes); c != nil {
		i.Comments = *c
	}
	return nil
}

// pickComments resolves the comments/notes alias; comments wins.
func pickComments(comments, notes *string) *string {
	if comments != nil {
		return comments
	}
	return notes
}

type ItemInput struct {
	MedicineID   int64  `json:"medicine_id"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

type LabTestInput struct {
	LabTestID int64  `json:"lab_test_id"`
	Notes     string `json:"notes"`
}

// ImagingInput accepts the annotation as "comments" or "notes".
type ImagingInput struct {
	ImagingStudyID int64
	Comments       string
}

func (in *ImagingInput) UnmarshalJSON(data []byte) error {
	var raw struct {
		ImagingStudyID int64   `json:"imaging_study_id"`
		Comments       *string `json:"comments"`
		Notes          *string `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in.ImagingStudyID = raw.ImagingStudyID
	in.Comments = ""
	if c := pickComments(raw.Comments, raw.Notes); c != nil {
		in.Comments = *c
	}
	return nil
}

func (in ImagingInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ImagingStudyID int64  `json:"imaging_study_id"`
		Comments       string `json:"comments"`
	}{in.ImagingStudyID, in.Comments})
}

type CreatePrescriptionRequest struct {
	VisitID          *int64         `json:"visit_id"`
	PatientID        int64          `json:"patient_id"`
	PrescriptionDate string         `json:"prescription_date"`
	Diagnosis        string         `json:"diagnosis"`
	Notes            string         `json:"notes"`
	Items            []ItemInput    `json:"prescription_items"`
	LabTests         []LabTestInput `json:"prescription_lab_tests"`
	ImagingStudies   []ImagingInput `json:"prescription_imaging_studies"`
}

type UpdatePrescriptionRequest struct {
	PrescriptionDate *string `json:"prescription_date,omitempty"`
	Diagnosis        *string `json:"diagnosis,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

type UpdateItemRequest struct {
	MedicineID   *int64  `json:"medicine_id,omitempty"`
	Dosage       *string `json:"dosage,omitempty"`
	Frequency    *string `json:"frequency,omitempty"`
	Duration     *string `json:"duration,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
}

// UpdateImagingRequest accepts the annotation as "comments" or "notes".
type UpdateImagingRequest struct {
	Comments *string
}

func (u *UpdateImagingRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Comments *string `json:"comments"`
		Notes    *string `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.Comments = pickComments(raw.Comments, raw.Notes)
	return nil
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func newPrescription() *Prescription {
	return &Prescription{
		Items:          []Item{},
		LabTests:       []LabTestItem{},
		ImagingStudies: []ImagingItem{},
	}
}

// Validate checks the line items of a create request. Catalog references
// are checked by the database.
func (r *CreatePrescriptionRequest) Validate() error {
	for _, it := range r.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	for _, lt := range r.LabTests {
		if err := lt.Validate(); err != nil {
			return err
		}
	}
	for _, is := range r.ImagingStudies {
		if err := is.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (in ItemInput) Validate() error {
	if in.MedicineID <= 0 {
		return ErrMedicineRequired
	}
	return nil
}

func (in LabTestInput) Validate() error {
	if in.LabTestID <= 0 {
		return ErrLabTestRequired
	}
	return nil
}

func (in ImagingInput) Validate() error {
	if in.ImagingStudyID <= 0 {
		return ErrImagingRequired
	}
	return nil
}

func (in *ItemInput) normalize() {
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Frequency = strings.TrimSpace(in.Frequency)
	in.Duration = strings.TrimSpace(in.Duration)
	in.Instructions = strings.TrimSpace(in.Instructions)
}
