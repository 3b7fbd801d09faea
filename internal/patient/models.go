package patient

import (
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

const dateLayout = "2006-01-02"

var genders = map[string]bool{"male": true, "female": true, "other": true}

// CreatePatientRequest represents the request to create a new patient
type CreatePatientRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"date_of_birth"` // Format: YYYY-MM-DD
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	BloodType      string `json:"blood_type"`
	Allergies      string `json:"allergies"`
	MedicalHistory string `json:"medical_history"`
	Notes          string `json:"notes"`
}

// UpdatePatientRequest carries the fields to change; nil fields are left as is.
type UpdatePatientRequest struct {
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Gender         *string `json:"gender,omitempty"`
	DateOfBirth    *string `json:"date_of_birth,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Email          *string `json:"email,omitempty"`
	Address        *string `json:"address,omitempty"`
	BloodType      *string `json:"blood_type,omitempty"`
	Allergies      *string `json:"allergies,omitempty"`
	MedicalHistory *string `json:"medical_history,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

// PatientResponse represents the patient data returned to clients
type PatientResponse struct {
	ID             int64      `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Gender         string     `json:"gender,omitempty"`
	DateOfBirth    *string    `json:"date_of_birth,omitempty"`
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	Address        string     `json:"address"`
	BloodType      string     `json:"blood_type"`
	Allergies      string     `json:"allergies"`
	MedicalHistory string     `json:"medical_history"`
	Notes          string     `json:"notes"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

type PaginatedPatientListResponse = pagination.Page[PatientResponse]

// Normalize trims whitespace and lower-cases the gender.
func (r *CreatePatientRequest) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Gender = strings.ToLower(strings.TrimSpace(r.Gender))
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
}

func (r CreatePatientRequest) Validate() error {
	if r.FirstName == "" {
		return ErrFirstNameRequired
	}
	if r.LastName == "" {
		return ErrLastNameRequired
	}
	if r.Gender != "" && !genders[r.Gender] {
		return ErrInvalidGender
	}
	if r.DateOfBirth != "" {
		if err := validateDate(r.DateOfBirth); err != nil {
			return err
		}
	}
	return nil
}

func (r UpdatePatientRequest) Empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.Gender == nil && r.DateOfBirth == nil &&
		r.Phone == nil && r.Email == nil && r.Address == nil && r.BloodType == nil &&
		r.Allergies == nil && r.MedicalHistory == nil && r.Notes == nil
}

func (r UpdatePatientRequest) Validate() error {
	if r.Empty() {
		return ErrNoFieldsToUpdate
	}
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return ErrLastNameRequired
	}
	if r.Gender != nil && !genders[strings.ToLower(*r.Gender)] {
		return ErrInvalidGender
	}
	if r.DateOfBirth != nil && *r.DateOfBirth != "" {
		if err := validateDate(*r.DateOfBirth); err != nil {
			return err
		}
	}
	return nil
}

func validateDate(s string) error {
	dob, err := time.Parse(dateLayout, s)
	if err != nil {
		return ErrInvalidDateOfBirth
	}
	if dob.After(time.Now()) {
		return ErrDateOfBirthInFuture
	}
	return nil
}
