package catalog

import (
	"net/http"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/httpx"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (h *Handler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListMedicines(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, listResponse[Medicine]{Data: items})
}

func (h *Handler) CreateMedicine(w http.ResponseWriter, r *http.Request) {
	var req Medicine
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	created, err := h.service.CreateMedicine(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListLabTests(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLabTests(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, listResponse[LabTest]{Data: items})
}

func (h *Handler) CreateLabTest(w http.ResponseWriter, r *http.Request) {
	var req LabTest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	created, err := h.service.CreateLabTest(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) ListImagingStudies(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListImagingStudies(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusOK, listResponse[ImagingStudy]{Data: items})
}

func (h *Handler) CreateImagingStudy(w http.ResponseWriter, r *http.Request) {
	var req ImagingStudy
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	created, err := h.service.CreateImagingStudy(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	apperr.WriteJSON(w, http.StatusCreated, created)
}
