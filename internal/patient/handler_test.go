package patient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	createPatientFunc func(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error)
	getPatientFunc    func(ctx context.Context, id int64) (*PatientResponse, error)
	listPatientsFunc  func(ctx context.Context, params pagination.Params, search string) (*PaginatedPatientListResponse, error)
	updatePatientFunc func(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error)
	deletePatientFunc func(ctx context.Context, id int64) error
}

func (m *mockService) CreatePatient(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
	if m.createPatientFunc != nil {
		return m.createPatientFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetPatient(ctx context.Context, id int64) (*PatientResponse, error) {
	if m.getPatientFunc != nil {
		return m.getPatientFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) ListPatients(ctx context.Context, params pagination.Params, search string) (*PaginatedPatientListResponse, error) {
	if m.listPatientsFunc != nil {
		return m.listPatientsFunc(ctx, params, search)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) UpdatePatient(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error) {
	if m.updatePatientFunc != nil {
		return m.updatePatientFunc(ctx, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) DeletePatient(ctx context.Context, id int64) error {
	if m.deletePatientFunc != nil {
		return m.deletePatientFunc(ctx, id)
	}
	return errors.New("not implemented")
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body
}

func TestHandlerCreatePatient_Success(t *testing.T) {
	mockSvc := &mockService{
		createPatientFunc: func(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
			return &PatientResponse{ID: 7, FirstName: req.FirstName, LastName: req.LastName, CreatedAt: time.Now()}, nil
		},
	}
	handler := NewHandler(mockSvc)

	body, _ := json.Marshal(CreatePatientRequest{FirstName: "John", LastName: "Doe"})
	req := httptest.NewRequest(http.MethodPost, "/patients", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.CreatePatient(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}

	var response PatientSuccessResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Patient == nil || response.Patient.ID != 7 {
		t.Errorf("Expected patient 7 in response, got %+v", response.Patient)
	}
}

func TestHandlerCreatePatient_InvalidJSON(t *testing.T) {
	handler := NewHandler(&mockService{})

	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.CreatePatient(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Code != string(apperr.KindValidation) {
		t.Errorf("Expected code validation_error, got %s", body.Code)
	}
}

func TestHandlerCreatePatient_ValidationError(t *testing.T) {
	mockSvc := &mockService{
		createPatientFunc: func(ctx context.Context, req CreatePatientRequest) (*PatientResponse, error) {
			return nil, ErrFirstNameRequired
		},
	}
	handler := NewHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(`{"last_name":"Doe"}`))
	rr := httptest.NewRecorder()
	handler.CreatePatient(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != "first_name is required" {
		t.Errorf("Unexpected error message: %s", body.Error)
	}
}

func TestHandlerGetPatient_NotFound(t *testing.T) {
	mockSvc := &mockService{
		getPatientFunc: func(ctx context.Context, id int64) (*PatientResponse, error) {
			return nil, ErrPatientNotFound
		},
	}
	handler := NewHandler(mockSvc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/patients/99", nil), map[string]string{"id": "99"})
	rr := httptest.NewRecorder()
	handler.GetPatient(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestHandlerGetPatient_InvalidID(t *testing.T) {
	handler := NewHandler(&mockService{})

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/patients/abc", nil), map[string]string{"id": "abc"})
	rr := httptest.NewRecorder()
	handler.GetPatient(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestHandlerListPatients_PassesQuery(t *testing.T) {
	mockSvc := &mockService{
		listPatientsFunc: func(ctx context.Context, params pagination.Params, search string) (*PaginatedPatientListResponse, error) {
			if params.Page != 2 || params.Limit != 5 {
				t.Errorf("Expected page 2 limit 5, got %+v", params)
			}
			if search != "ana" {
				t.Errorf("Expected search 'ana', got '%s'", search)
			}
			page := pagination.NewPage([]PatientResponse{{ID: 1}}, params, 6)
			return &page, nil
		},
	}
	handler := NewHandler(mockSvc)

	req := httptest.NewRequest(http.MethodGet, "/patients?page=2&limit=5&search=ana", nil)
	rr := httptest.NewRecorder()
	handler.ListPatients(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var response PaginatedPatientListResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Pagination.TotalRecords != 6 {
		t.Errorf("Expected 6 total records, got %d", response.Pagination.TotalRecords)
	}
}

func TestHandlerDeletePatient_StorageErrorIsHidden(t *testing.T) {
	mockSvc := &mockService{
		deletePatientFunc: func(ctx context.Context, id int64) error {
			return apperr.Internal("storage failure", errors.New(`pq: relation "patients" does not exist`))
		},
	}
	handler := NewHandler(mockSvc)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodDelete, "/patients/3", nil), map[string]string{"id": "3"})
	rr := httptest.NewRecorder()
	handler.DeletePatient(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
	if body := decodeError(t, rr); strings.Contains(body.Error, "pq:") {
		t.Errorf("Driver error leaked to client: %s", body.Error)
	}
}

func TestHandlerUpdatePatient_Success(t *testing.T) {
	mockSvc := &mockService{
		updatePatientFunc: func(ctx context.Context, id int64, req UpdatePatientRequest) (*PatientResponse, error) {
			if req.Phone == nil || *req.Phone != "555-0100" {
				t.Errorf("Expected phone to be set")
			}
			return &PatientResponse{ID: id, Phone: *req.Phone}, nil
		},
	}
	handler := NewHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPut, "/patients/4", strings.NewReader(`{"phone":"555-0100"}`))
	req = mux.SetURLVars(req, map[string]string{"id": "4"})
	rr := httptest.NewRecorder()
	handler.UpdatePatient(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}
