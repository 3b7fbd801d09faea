package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys as constants
const (
	EventPatientCreated = "patient.created"
	EventPatientDeleted = "patient.deleted"

	EventVisitDeleted = "visit.deleted"

	EventPrescriptionCreated = "prescription.created"

	EventFileUploaded = "file.uploaded"
	EventFileDeleted  = "file.deleted"
)

const serviceName = "clinic-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: serviceName,
	}
}

type PatientCreatedEvent struct {
	BaseEvent
	Data PatientCreatedData `json:"data"`
}

type PatientCreatedData struct {
	PatientID int64     `json:"patient_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

type PatientDeletedEvent struct {
	BaseEvent
	Data PatientDeletedData `json:"data"`
}

type PatientDeletedData struct {
	PatientID int64     `json:"patient_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// VisitDeletedEvent is published after a cascading visit delete commits.
type VisitDeletedEvent struct {
	BaseEvent
	Data VisitDeletedData `json:"data"`
}

type VisitDeletedData struct {
	VisitID              int64     `json:"visit_id"`
	PatientID            int64     `json:"patient_id"`
	DeletedPrescriptions int64     `json:"deleted_prescriptions"`
	DeletedFiles         int64     `json:"deleted_files"`
	FilePolicy           string    `json:"file_policy"`
	DeletedAt            time.Time `json:"deleted_at"`
}

type PrescriptionCreatedEvent struct {
	BaseEvent
	Data PrescriptionCreatedData `json:"data"`
}

type PrescriptionCreatedData struct {
	PrescriptionID    int64     `json:"prescription_id"`
	PatientID         int64     `json:"patient_id"`
	VisitID           *int64    `json:"visit_id,omitempty"`
	MedicineCount     int       `json:"medicine_count"`
	LabTestCount      int       `json:"lab_test_count"`
	ImagingStudyCount int       `json:"imaging_study_count"`
	CreatedAt         time.Time `json:"created_at"`
}

type FileUploadedEvent struct {
	BaseEvent
	Data FileUploadedData `json:"data"`
}

type FileUploadedData struct {
	FileID     int64     `json:"file_id"`
	PatientID  int64     `json:"patient_id"`
	VisitID    *int64    `json:"visit_id,omitempty"`
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type FileDeletedEvent struct {
	BaseEvent
	Data FileDeletedData `json:"data"`
}

type FileDeletedData struct {
	FileID    int64     `json:"file_id"`
	PatientID int64     `json:"patient_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
