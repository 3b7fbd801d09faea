package patient

import (
	"net/http"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/httpx"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type PatientSuccessResponse struct {
	Message string           `json:"message"`
	Patient *PatientResponse `json:"patient,omitempty"`
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	patient, err := h.service.CreatePatient(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, PatientSuccessResponse{
		Message: "Patient created successfully",
		Patient: patient,
	})
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	params := pagination.ParseParams(r)

	response, err := h.service.ListPatients(r.Context(), params, r.URL.Query().Get("search"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	patient, err := h.service.GetPatient(r.Context(), id)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, patient)
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdatePatientRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	patient, err := h.service.UpdatePatient(r.Context(), id, req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, PatientSuccessResponse{
		Message: "Patient updated successfully",
		Patient: patient,
	})
}

func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeletePatient(r.Context(), id); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Patient deleted successfully"})
}
