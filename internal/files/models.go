package files

import "time"

// PatientFile is the metadata row of a stored upload. FilePath is relative
// to the upload directory.
type PatientFile struct {
	ID           int64     `json:"id"`
	PatientID    int64     `json:"patient_id"`
	VisitID      *int64    `json:"visit_id"`
	FileName     string    `json:"file_name"`
	OriginalName string    `json:"original_name"`
	FilePath     string    `json:"file_path"`
	MimeType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	Description  string    `json:"description"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// IncomingFile is one validated file part waiting in the staging directory.
type IncomingFile struct {
	OriginalName string
	MimeType     string
	Staged       string
	Size         int64
}

type UploadRequest struct {
	VisitID     *int64
	Description string
	Files       []IncomingFile
}

// Discard removes whatever is still staged for the request. Promoted files
// are already gone from staging and are skipped.
func (r *UploadRequest) Discard(staging *Storage) {
	for _, f := range r.Files {
		staging.Discard(f.Staged)
	}
}

type UploadResponse struct {
	Message string        `json:"message"`
	FileID  int64         `json:"fileId"`
	File    PatientFile   `json:"file"`
	Files   []PatientFile `json:"files"`
}

type fileList struct {
	Data []PatientFile `json:"data"`
}
