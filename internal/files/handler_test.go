package files

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockService struct {
	UploadFunc     func(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error)
	ListFilesFunc  func(ctx context.Context, patientID int64, visitID *int64) ([]PatientFile, error)
	GetFileFunc    func(ctx context.Context, patientID, fileID int64) (*PatientFile, error)
	OpenFileFunc   func(ctx context.Context, patientID, fileID int64) (*PatientFile, *os.File, error)
	DeleteFileFunc func(ctx context.Context, patientID, fileID int64) error
	rejections     []error
}

func (m *mockService) Upload(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, patientID, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) RecordRejection(ctx context.Context, err error) {
	m.rejections = append(m.rejections, err)
}

func (m *mockService) ListFiles(ctx context.Context, patientID int64, visitID *int64) ([]PatientFile, error) {
	if m.ListFilesFunc != nil {
		return m.ListFilesFunc(ctx, patientID, visitID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) GetFile(ctx context.Context, patientID, fileID int64) (*PatientFile, error) {
	if m.GetFileFunc != nil {
		return m.GetFileFunc(ctx, patientID, fileID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockService) OpenFile(ctx context.Context, patientID, fileID int64) (*PatientFile, *os.File, error) {
	if m.OpenFileFunc != nil {
		return m.OpenFileFunc(ctx, patientID, fileID)
	}
	return nil, nil, errors.New("not implemented")
}

func (m *mockService) DeleteFile(ctx context.Context, patientID, fileID int64) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, patientID, fileID)
	}
	return errors.New("not implemented")
}

func withVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

func TestUploadFiles_Created(t *testing.T) {
	svc := &mockService{
		UploadFunc: func(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error) {
			assert.Equal(t, int64(3), patientID)
			require.Len(t, req.Files, 1)
			return []PatientFile{{ID: 11, PatientID: 3, OriginalName: req.Files[0].OriginalName}}, nil
		},
	}
	staging := newTestStorage(t)
	h := NewHandler(svc, staging, testLimits)

	req := withVars(multipartRequest(t, part{field: "files", filename: "a.txt", body: []byte("a")}),
		map[string]string{"patientId": "3"})
	rr := httptest.NewRecorder()
	h.UploadFiles(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(11), body["fileId"])
	assert.Len(t, body["files"], 1)
	assert.Zero(t, countStaged(t, staging), "leftover staging files are discarded")
}

func TestUploadFiles_DeadlineStartsAfterBody(t *testing.T) {
	var remaining time.Duration
	svc := &mockService{
		UploadFunc: func(ctx context.Context, patientID int64, req UploadRequest) ([]PatientFile, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			remaining = time.Until(deadline)
			return []PatientFile{{ID: 1}}, nil
		},
	}
	limits := testLimits
	limits.Timeout = 100 * time.Millisecond
	h := NewHandler(svc, newTestStorage(t), limits)

	req := withVars(multipartRequest(t, part{field: "files", filename: "a.txt", body: []byte("a")}),
		map[string]string{"patientId": "3"})
	req.Body = &delayedBody{ReadCloser: req.Body, delay: 150 * time.Millisecond}
	rr := httptest.NewRecorder()
	h.UploadFiles(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Greater(t, remaining, 50*time.Millisecond, "body read time is not charged to the storage deadline")
}

type delayedBody struct {
	io.ReadCloser
	delay time.Duration
	once  bool
}

func (b *delayedBody) Read(p []byte) (int, error) {
	if !b.once {
		b.once = true
		time.Sleep(b.delay)
	}
	return b.ReadCloser.Read(p)
}

func TestUploadFiles_RejectedBeforeService(t *testing.T) {
	svc := &mockService{
		UploadFunc: func(context.Context, int64, UploadRequest) ([]PatientFile, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	h := NewHandler(svc, newTestStorage(t), testLimits)

	req := withVars(multipartRequest(t, part{field: "files", filename: "virus.exe", body: []byte("MZ")}),
		map[string]string{"patientId": "3"})
	rr := httptest.NewRecorder()
	h.UploadFiles(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"file \"virus.exe\" has a type that is not allowed","code":"file_type_not_allowed"}`, rr.Body.String())
	assert.Len(t, svc.rejections, 1)
}

func TestDownloadFile_Headers(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "stored.pdf")
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o600))

	svc := &mockService{
		OpenFileFunc: func(ctx context.Context, patientID, fileID int64) (*PatientFile, *os.File, error) {
			fh, err := os.Open(p)
			return &PatientFile{ID: fileID, OriginalName: "lab results.pdf", MimeType: "application/pdf", UploadedAt: time.Now()}, fh, err
		},
	}
	h := NewHandler(svc, newTestStorage(t), testLimits)

	for _, tt := range []struct {
		name        string
		serve       http.HandlerFunc
		disposition string
	}{
		{"download", h.DownloadFile, `attachment; filename="lab results.pdf"`},
		{"preview", h.PreviewFile, `inline; filename="lab results.pdf"`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := withVars(httptest.NewRequest(http.MethodGet, "/patients/3/files/8/"+tt.name, nil),
				map[string]string{"patientId": "3", "fileId": "8"})
			rr := httptest.NewRecorder()
			tt.serve(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.disposition, rr.Header().Get("Content-Disposition"))
			assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "%PDF-1.4", rr.Body.String())
		})
	}
}

func TestDownloadFile_MissingContent(t *testing.T) {
	svc := &mockService{
		OpenFileFunc: func(context.Context, int64, int64) (*PatientFile, *os.File, error) {
			return nil, nil, ErrFileContentMissing
		},
	}
	h := NewHandler(svc, newTestStorage(t), testLimits)

	req := withVars(httptest.NewRequest(http.MethodGet, "/patients/3/files/8/download", nil),
		map[string]string{"patientId": "3", "fileId": "8"})
	rr := httptest.NewRecorder()
	h.DownloadFile(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"file content not found","code":"not_found"}`, rr.Body.String())
}

func TestListFiles_InvalidVisitFilter(t *testing.T) {
	h := NewHandler(&mockService{}, newTestStorage(t), testLimits)
	req := withVars(httptest.NewRequest(http.MethodGet, "/patients/3/files?visit_id=x", nil),
		map[string]string{"patientId": "3"})
	rr := httptest.NewRecorder()
	h.ListFiles(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteFile_OK(t *testing.T) {
	svc := &mockService{
		DeleteFileFunc: func(ctx context.Context, patientID, fileID int64) error {
			assert.Equal(t, int64(3), patientID)
			assert.Equal(t, int64(8), fileID)
			return nil
		},
	}
	h := NewHandler(svc, newTestStorage(t), testLimits)
	req := withVars(httptest.NewRequest(http.MethodDelete, "/patients/3/files/8", nil),
		map[string]string{"patientId": "3", "fileId": "8"})
	rr := httptest.NewRecorder()
	h.DeleteFile(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"File deleted successfully"}`, rr.Body.String())
}
