package files

import (
	"context"
	"mime"
	"net/http"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/httpx"
)

type Handler struct {
	service ServiceInterface
	staging *Storage
	limits  Limits
}

func NewHandler(service ServiceInterface, staging *Storage, limits Limits) *Handler {
	return &Handler{service: service, staging: staging, limits: limits}
}

func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathID(r, "patientId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	req, err := ParseUpload(w, r, h.limits, h.staging)
	if err != nil {
		h.service.RecordRejection(r.Context(), err)
		apperr.WriteError(w, r, err)
		return
	}
	defer req.Discard(h.staging)

	// The body may take longer to arrive than any request deadline allows,
	// so the clock for the storage work starts here.
	ctx := r.Context()
	if h.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.Timeout)
		defer cancel()
	}

	stored, err := h.service.Upload(ctx, patientID, *req)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusCreated, UploadResponse{
		Message: "File uploaded successfully",
		FileID:  stored[0].ID,
		File:    stored[0],
		Files:   stored,
	})
}

func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	patientID, err := httpx.PathID(r, "patientId")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	visitID, err := httpx.QueryID(r, "visit_id")
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	files, err := h.service.ListFiles(r.Context(), patientID, visitID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, fileList{Data: files})
}

func fileIDs(r *http.Request) (int64, int64, error) {
	patientID, err := httpx.PathID(r, "patientId")
	if err != nil {
		return 0, 0, err
	}
	fileID, err := httpx.PathID(r, "fileId")
	if err != nil {
		return 0, 0, err
	}
	return patientID, fileID, nil
}

func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	patientID, fileID, err := fileIDs(r)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	f, err := h.service.GetFile(r.Context(), patientID, fileID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "attachment")
}

func (h *Handler) PreviewFile(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, "inline")
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, disposition string) {
	patientID, fileID, err := fileIDs(r)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	f, fh, err := h.service.OpenFile(r.Context(), patientID, fileID)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}
	defer fh.Close()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.OriginalName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, f.OriginalName, f.UploadedAt, fh)
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	patientID, fileID, err := fileIDs(r)
	if err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	if err := h.service.DeleteFile(r.Context(), patientID, fileID); err != nil {
		apperr.WriteError(w, r, err)
		return
	}

	apperr.WriteJSON(w, http.StatusOK, httpx.Message{Message: "File deleted successfully"})
}
