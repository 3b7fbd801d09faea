package prescription

import "context"

// ServiceInterface defines the contract for prescription business logic operations
type ServiceInterface interface {
	CreatePrescription(ctx context.Context, req CreatePrescriptionRequest) (*Prescription, error)
	GetPrescription(ctx context.Context, id int64) (*Prescription, error)
	GetPrescriptionByVisit(ctx context.Context, visitID int64) (*Prescription, error)
	ListPatientPrescriptions(ctx context.Context, patientID int64) ([]Prescription, error)
	UpdatePrescription(ctx context.Context, id int64, req UpdatePrescriptionRequest) (*Prescription, error)
	DeletePrescription(ctx context.Context, id int64) error

	AddItem(ctx context.Context, prescriptionID int64, in ItemInput) (*Item, error)
	UpdateItem(ctx context.Context, prescriptionID, itemID int64, req UpdateItemRequest) (*Item, error)
	DeleteItem(ctx context.Context, prescriptionID, itemID int64) error
	AddLabTest(ctx context.Context, prescriptionID int64, in LabTestInput) (*LabTestItem, error)
	DeleteLabTest(ctx context.Context, prescriptionID, labTestItemID int64) error
	AddImagingStudy(ctx context.Context, prescriptionID int64, in ImagingInput) (*ImagingItem, error)
	UpdateImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64, req UpdateImagingRequest) (*ImagingItem, error)
	DeleteImagingStudy(ctx context.Context, prescriptionID, imagingItemID int64) error
}

var _ ServiceInterface = (*Service)(nil)
