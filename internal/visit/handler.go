package visit

import (
	"net/http"
	"time"

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

type VisitSuccessResponse struct {
	Message string `json:"message"`
	Visit   *Visit `json:"visit,omitempty"`
}

func (h *Handler) CreateVisit(w http.ResponseWriter, r *http.Request) {
	var req CreateVisitRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	visit, err := h.service.CreateVisit(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, VisitSuccessResponse{
		Message: "Visit created successfully",
		Visit:   visit,
	})
}

func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	params := pagination.ParseParams(r)
	q := r.URL.Query()

	filter := ListFilter{Status: q.Get("status")}
	patientID, err := httpx.QueryID(r, "patient_id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	filter.PatientID = patientID

	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			apperr.WriteError(w, r, ErrInvalidDate)
			return
		}
		filter.Date = &d
	}

	response, err := h.service.ListVisits(r.Context(), params, filter)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, response)
}

type visitList struct {
	Data []Visit `json:"data"`
}

func (h *Handler) ListPatientVisits(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	visits, err := h.service.ListPatientVisits(r.Context(), patientID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, visitList{Data: visits})
}

func (h *Handler) GetVisit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	visit, err := h.service.GetVisit(r.Context(), id)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, visit)
}

func (h *Handler) UpdateVisit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdateVisitRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	visit, err := h.service.UpdateVisit(r.Context(), id, req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, VisitSuccessResponse{
		Message: "Visit updated successfully",
		Visit:   visit,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdateStatusRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	visit, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, VisitSuccessResponse{
		Message: "Visit status updated successfully",
		Visit:   visit,
	})
}

func (h *Handler) DeleteVisit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	result, err := h.service.DeleteVisit(r.Context(), id)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, result)
}
