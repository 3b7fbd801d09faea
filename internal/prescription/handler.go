package prescription

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

func (h *Handler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	var req CreatePrescriptionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	p, err := h.service.CreatePrescription(r.Context(), req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetPrescription(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	p, err := h.service.GetPrescription(r.Context(), id)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) GetVisitPrescription(w http.ResponseWriter, r *http.Request) {
	visitID, err := httpx.PathID(r, "visitId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	p, err := h.service.GetPrescriptionByVisit(r.Context(), visitID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, p)
}

type prescriptionList struct {
	Data []Prescription `json:"data"`
}

func (h *Handler) ListPatientPrescriptions(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	prescriptions, err := h.service.ListPatientPrescriptions(r.Context(), patientID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, prescriptionList{Data: prescriptions})
}

func (h *Handler) UpdatePrescription(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdatePrescriptionRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	p, err := h.service.UpdatePrescription(r.Context(), id, req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) DeletePrescription(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeletePrescription(r.Context(), id); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Prescription deleted successfully"})
}

// pathIDs parses the prescription id and one line item id.
func pathIDs(r *http.Request, child string) (int64, int64, error) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	childID, err := httpx.PathID(r, child)
	if err != nil {
		return 0, 0, err
	}
	return id, childID, nil
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var in ItemInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), id, in)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, err := pathIDs(r, "itemId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdateItemRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), id, itemID, req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, itemID, err := pathIDs(r, "itemId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeleteItem(r.Context(), id, itemID); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Prescription item deleted successfully"})
}

func (h *Handler) AddLabTest(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var in LabTestInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	lt, err := h.service.AddLabTest(r.Context(), id, in)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, lt)
}

func (h *Handler) DeleteLabTest(w http.ResponseWriter, r *http.Request) {
	id, labTestItemID, err := pathIDs(r, "labTestItemId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeleteLabTest(r.Context(), id, labTestItemID); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Prescription lab test deleted successfully"})
}

func (h *Handler) AddImagingStudy(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var in ImagingInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	is, err := h.service.AddImagingStudy(r.Context(), id, in)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, is)
}

func (h *Handler) UpdateImagingStudy(w http.ResponseWriter, r *http.Request) {
	id, imagingItemID, err := pathIDs(r, "imagingItemId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	var req UpdateImagingRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	is, err := h.service.UpdateImagingStudy(r.Context(), id, imagingItemID, req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, is)
}

func (h *Handler) DeleteImagingStudy(w http.ResponseWriter, r *http.Request) {
	id, imagingItemID, err := pathIDs(r, "imagingItemId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeleteImagingStudy(r.Context(), id, imagingItemID); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "Prescription imaging study deleted successfully"})
}
