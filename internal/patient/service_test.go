package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/testutil"
)

// mockRepository implements RepositoryInterface for testing
type mockRepository struct {
	createPatientFunc func(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error)
	listPatientsFunc  func(ctx context.Context, limit, offset int, search string) ([]PatientResponse, int, error)
	getPatientFunc    func(ctx context.Context, id int64) (*PatientResponse, error)
	updatePatientFunc func(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error)
	deletePatientFunc func(ctx context.Context, id int64) (time.Time, error)
}

func (m *mockRepository) CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
	if m.createPatientFunc != nil {
		return m.createPatientFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) ListPatients(ctx context.Context, limit, offset int, search string) ([]PatientResponse, int, error) {
	if m.listPatientsFunc != nil {
		return m.listPatientsFunc(ctx, limit, offset, search)
	}
	return nil, 0, errors.New("not implemented")
}

func (m *mockRepository) GetPatient(ctx context.Context, id int64) (*PatientResponse, error) {
	if m.getPatientFunc != nil {
		return m.getPatientFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error) {
	if m.updatePatientFunc != nil {
		return m.updatePatientFunc(ctx, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) DeletePatient(ctx context.Context, id int64) (time.Time, error) {
	if m.deletePatientFunc != nil {
		return m.deletePatientFunc(ctx, id)
	}
	return time.Time{}, errors.New("not implemented")
}

func strPtr(s string) *string { return &s }

func TestCreatePatient_Success(t *testing.T) {
	publisher := testutil.NewMockPublisher()
	mockRepo := &mockRepository{
		createPatientFunc: func(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
			if req.FirstName != "John" {
				t.Errorf("Expected trimmed first name 'John', got '%s'", req.FirstName)
			}
			if req.Gender != "male" {
				t.Errorf("Expected normalized gender 'male', got '%s'", req.Gender)
			}
			return &PatientResponse{ID: 1, FirstName: req.FirstName, LastName: req.LastName, CreatedAt: time.Now()}, nil
		},
	}

	service := NewService(mockRepo, publisher, nil)

	patient, err := service.CreatePatient(context.Background(), CreatePatientRequest{
		FirstName:   "  John ",
		LastName:    "Doe",
		Gender:      "Male",
		DateOfBirth: "1980-01-01",
	})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if patient.ID != 1 {
		t.Errorf("Expected ID 1, got %d", patient.ID)
	}
	publisher.AssertEventCount(t, messaging.EventPatientCreated, 1)
}

func TestCreatePatient_ValidationError(t *testing.T) {
	service := NewService(&mockRepository{}, nil, nil)

	testCases := []struct {
		name    string
		req     CreatePatientRequest
		wantErr error
	}{
		{"Missing first name", CreatePatientRequest{LastName: "Doe"}, ErrFirstNameRequired},
		{"Missing last name", CreatePatientRequest{FirstName: "John"}, ErrLastNameRequired},
		{"Invalid gender", CreatePatientRequest{FirstName: "John", LastName: "Doe", Gender: "robot"}, ErrInvalidGender},
		{"Invalid date", CreatePatientRequest{FirstName: "John", LastName: "Doe", DateOfBirth: "01/02/1990"}, ErrInvalidDateOfBirth},
		{"Future date", CreatePatientRequest{FirstName: "John", LastName: "Doe", DateOfBirth: "2999-01-01"}, ErrDateOfBirthInFuture},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreatePatient(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Expected %v, got %v", tc.wantErr, err)
			}
			if apperr.KindOf(err) != apperr.KindValidation {
				t.Errorf("Expected validation error, got kind %s", apperr.KindOf(err))
			}
		})
	}
}

func TestListPatients_Pagination(t *testing.T) {
	mockRepo := &mockRepository{
		listPatientsFunc: func(ctx context.Context, limit, offset int, search string) ([]PatientResponse, int, error) {
			if limit != 10 || offset != 10 {
				t.Errorf("Expected limit 10 offset 10, got %d %d", limit, offset)
			}
			if search != "doe" {
				t.Errorf("Expected search 'doe', got '%s'", search)
			}
			return []PatientResponse{{ID: 11}, {ID: 12}}, 25, nil
		},
	}

	service := NewService(mockRepo, nil, nil)
	result, err := service.ListPatients(context.Background(), pagination.Params{Page: 2, Limit: 10}, " doe ")

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Data) != 2 {
		t.Errorf("Expected 2 patients, got %d", len(result.Data))
	}
	if result.Pagination.TotalPages != 3 {
		t.Errorf("Expected 3 pages, got %d", result.Pagination.TotalPages)
	}
}

func TestUpdatePatient_EmptyRequest(t *testing.T) {
	service := NewService(&mockRepository{}, nil, nil)

	_, err := service.UpdatePatient(context.Background(), 1, UpdatePatientRequest{})
	if !errors.Is(err, ErrNoFieldsToUpdate) {
		t.Errorf("Expected ErrNoFieldsToUpdate, got %v", err)
	}
}

func TestUpdatePatient_BlankName(t *testing.T) {
	service := NewService(&mockRepository{}, nil, nil)

	_, err := service.UpdatePatient(context.Background(), 1, UpdatePatientRequest{FirstName: strPtr("  ")})
	if !errors.Is(err, ErrFirstNameRequired) {
		t.Errorf("Expected ErrFirstNameRequired, got %v", err)
	}
}

func TestDeletePatient_PublishesEvent(t *testing.T) {
	publisher := testutil.NewMockPublisher()
	mockRepo := &mockRepository{
		deletePatientFunc: func(ctx context.Context, id int64) (time.Time, error) {
			return time.Now(), nil
		},
	}

	service := NewService(mockRepo, publisher, nil)
	if err := service.DeletePatient(context.Background(), 5); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	event := publisher.GetLastEventByKey(messaging.EventPatientDeleted)
	if event == nil {
		t.Fatal("Expected patient.deleted event")
	}
	data := event.EventData.(messaging.PatientDeletedEvent).Data
	if data.PatientID != 5 {
		t.Errorf("Expected patient_id 5, got %d", data.PatientID)
	}
}

func TestDeletePatient_NotFoundPublishesNothing(t *testing.T) {
	publisher := testutil.NewMockPublisher()
	mockRepo := &mockRepository{
		deletePatientFunc: func(ctx context.Context, id int64) (time.Time, error) {
			return time.Time{}, ErrPatientNotFound
		},
	}

	service := NewService(mockRepo, publisher, nil)
	err := service.DeletePatient(context.Background(), 5)

	if !apperr.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
	publisher.AssertEventNotPublished(t, messaging.EventPatientDeleted)
}
