package visit

import (
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

const (
	TypePrimary  = "primary"
	TypeFollowUp = "follow_up"

	StatusWaiting   = "waiting"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var (
	visitTypes    = map[string]bool{TypePrimary: true, TypeFollowUp: true}
	visitStatuses = map[string]bool{StatusWaiting: true, StatusCompleted: true, StatusCancelled: true}
)

type Visit struct {
	ID             int64      `json:"id"`
	PatientID      int64      `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	VisitDate      time.Time  `json:"visit_date"`
	VisitType      string     `json:"visit_type"`
	Status         string     `json:"status"`
	ChiefComplaint string     `json:"chief_complaint"`
	Symptoms       string     `json:"symptoms"`
	Diagnosis      string     `json:"diagnosis"`
	TreatmentPlan  string     `json:"treatment_plan"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type CreateVisitRequest struct {
	PatientID      int64  `json:"patient_id"`
	VisitDate      string `json:"visit_date"`
	VisitType      string `json:"visit_type"`
	Status         string `json:"status"`
	ChiefComplaint string `json:"chief_complaint"`
	Symptoms       string `json:"symptoms"`
	Diagnosis      string `json:"diagnosis"`
	TreatmentPlan  string `json:"treatment_plan"`
	Notes          string `json:"notes"`
}

// Normalize trims input and applies the type and status defaults.
func (r *CreateVisitRequest) Normalize() {
	r.VisitType = strings.ToLower(strings.TrimSpace(r.VisitType))
	if r.VisitType == "" {
		r.VisitType = TypePrimary
	}
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	if r.Status == "" {
		r.Status = StatusWaiting
	}
	r.VisitDate = strings.TrimSpace(r.VisitDate)
	r.ChiefComplaint = strings.TrimSpace(r.ChiefComplaint)
	r.Symptoms = strings.TrimSpace(r.Symptoms)
	r.Diagnosis = strings.TrimSpace(r.Diagnosis)
	r.TreatmentPlan = strings.TrimSpace(r.TreatmentPlan)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *CreateVisitRequest) Validate() error {
	if r.PatientID <= 0 {
		return ErrPatientRequired
	}
	if !visitTypes[r.VisitType] {
		return ErrInvalidVisitType
	}
	if !visitStatuses[r.Status] {
		return ErrInvalidStatus
	}
	if r.VisitDate != "" {
		if _, err := parseVisitDate(r.VisitDate); err != nil {
			return err
		}
	}
	return nil
}

type UpdateVisitRequest struct {
	VisitDate      *string `json:"visit_date,omitempty"`
	VisitType      *string `json:"visit_type,omitempty"`
	Status         *string `json:"status,omitempty"`
	ChiefComplaint *string `json:"chief_complaint,omitempty"`
	Symptoms       *string `json:"symptoms,omitempty"`
	Diagnosis      *string `json:"diagnosis,omitempty"`
	TreatmentPlan  *string `json:"treatment_plan,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

func (r *UpdateVisitRequest) Validate() error {
	if r.VisitType != nil {
		t := strings.ToLower(strings.TrimSpace(*r.VisitType))
		if !visitTypes[t] {
			return ErrInvalidVisitType
		}
		r.VisitType = &t
	}
	if r.Status != nil {
		s := strings.ToLower(strings.TrimSpace(*r.Status))
		if !visitStatuses[s] {
			return ErrInvalidStatus
		}
		r.Status = &s
	}
	if r.VisitDate != nil {
		if _, err := parseVisitDate(*r.VisitDate); err != nil {
			return err
		}
	}
	return nil
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ListFilter narrows GET /visits. Zero values mean no filter.
type ListFilter struct {
	Status    string
	PatientID *int64
	Date      *time.Time
}

type PaginatedVisitListResponse = pagination.Page[Visit]

// DeleteResult is returned by the cascading delete.
type DeleteResult struct {
	Message              string `json:"message"`
	DeletedVisitID       int64  `json:"deletedVisitId"`
	DeletedPrescriptions int64  `json:"deletedPrescriptions"`
	DeletedFiles         int64  `json:"deletedFiles"`
}

// parseVisitDate accepts RFC 3339 or a bare YYYY-MM-DD date.
func parseVisitDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, ErrInvalidVisitDate
	}
	return t, nil
}
