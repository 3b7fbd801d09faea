package files

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
)

const (
	fieldFiles       = "files"
	fieldVisitID     = "visit_id"
	fieldDescription = "description"

	maxFormValue = 64 << 10
)

// Limits bound a single upload request. Timeout covers the storage work that
// follows once the body has been read; zero leaves only the request context.
type Limits struct {
	MaxFileSize int64
	MaxFiles    int
	Timeout     time.Duration
}

// allowedTypes maps permitted extensions to the mime type stored for them.
var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".txt":  "text/plain",
}

// detectType returns the stored mime type for a part, or false when the
// extension is not on the allow-list or the declared content type names a
// different type. application/octet-stream defers to the extension.
func detectType(name, declared string) (string, bool) {
	stored, ok := allowedTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return "", false
	}
	if declared == "" {
		return stored, true
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return "", false
	}
	if mediaType == "application/octet-stream" || mediaType == stored {
		return stored, true
	}
	return "", false
}

// ParseUpload streams a multipart upload into staging files and validates
// it. Nothing reaches the patients directory here. On error every part staged
// so far is discarded; on success the caller discards what it does not
// promote.
func ParseUpload(w http.ResponseWriter, r *http.Request, limits Limits, staging *Storage) (_ *UploadRequest, err error) {
	// Room for every file at the limit plus form overhead.
	maxBody := int64(limits.MaxFiles)*(limits.MaxFileSize+maxFormValue) + maxFormValue
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Validation("request must be multipart/form-data")
	}

	req := &UploadRequest{}
	defer func() {
		if err != nil {
			req.Discard(staging)
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, uploadReadError(err)
		}

		switch part.FormName() {
		case fieldFiles:
			if part.FileName() == "" {
				part.Close()
				return nil, errUnexpectedField(fieldFiles)
			}
			if len(req.Files) >= limits.MaxFiles {
				part.Close()
				return nil, errTooManyFiles(limits.MaxFiles)
			}
			f, err := readFilePart(part.FileName(), part.Header.Get("Content-Type"), part, limits, staging)
			part.Close()
			if err != nil {
				return nil, err
			}
			req.Files = append(req.Files, *f)

		case fieldVisitID:
			value, err := readValue(part)
			if err != nil {
				return nil, err
			}
			if value = strings.TrimSpace(value); value != "" {
				id, err := strconv.ParseInt(value, 10, 64)
				if err != nil || id <= 0 {
					return nil, apperr.Validation("invalid visit_id")
				}
				req.VisitID = &id
			}

		case fieldDescription:
			value, err := readValue(part)
			if err != nil {
				return nil, err
			}
			req.Description = strings.TrimSpace(value)

		default:
			name := part.FormName()
			part.Close()
			return nil, errUnexpectedField(name)
		}
	}

	if len(req.Files) == 0 {
		return nil, ErrMissingFile
	}
	return req, nil
}

func readFilePart(name, declared string, r io.Reader, limits Limits, staging *Storage) (*IncomingFile, error) {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	mimeType, ok := detectType(name, declared)
	if !ok {
		return nil, errTypeNotAllowed(name)
	}

	body := &trackedReader{r: r}
	staged, n, err := staging.Stage(body, limits.MaxFileSize+1)
	if err != nil {
		if body.err != nil {
			return nil, uploadReadError(body.err)
		}
		return nil, apperr.Internal("failed to stage upload", err)
	}
	if n > limits.MaxFileSize {
		staging.Discard(staged)
		return nil, errFileTooLarge(name, limits.MaxFileSize)
	}

	return &IncomingFile{OriginalName: name, MimeType: mimeType, Staged: staged, Size: n}, nil
}

// trackedReader remembers a read error so that a failing client body can be
// told apart from a failing disk.
type trackedReader struct {
	r   io.Reader
	err error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		t.err = err
	}
	return n, err
}

func readValue(r io.Reader) (string, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxFormValue))
	if err != nil {
		return "", apperr.Validation("invalid multipart payload")
	}
	return string(b), nil
}

func uploadReadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperr.ValidationCode(apperr.CodeFileTooLarge, "upload exceeds the maximum request size")
	}
	return apperr.Validation("invalid multipart payload")
}
