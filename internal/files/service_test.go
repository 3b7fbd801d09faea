package files

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/testutil"
)

var fileCols = []string{
	"id", "patient_id", "visit_id", "file_name", "original_name", "file_path",
	"mime_type", "file_size", "description", "uploaded_at",
}

type fixture struct {
	svc       *Service
	mock      sqlmock.Sqlmock
	storage   *Storage
	publisher *testutil.MockPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &fixture{mock: mock, storage: newTestStorage(t), publisher: testutil.NewMockPublisher()}
	f.svc = NewService(conn, db.NewTransactor(conn, time.Second), f.storage, f.publisher, nil)
	return f
}

func countStored(t *testing.T, s *Storage) int {
	t.Helper()
	n := 0
	require.NoError(t, s.Walk(func(StoredFile) error {
		n++
		return nil
	}))
	return n
}

func stageFile(t *testing.T, s *Storage, name, mimeType, content string) IncomingFile {
	t.Helper()
	staged, n, err := s.Stage(strings.NewReader(content), 1024)
	require.NoError(t, err)
	return IncomingFile{OriginalName: name, MimeType: mimeType, Staged: staged, Size: n}
}

func expectPatient(mock sqlmock.Sqlmock, id int64, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM patients WHERE id = \$1`).WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestUpload_StoresBytesAndMetadata(t *testing.T) {
	f := newFixture(t)
	uploadedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	visitID := int64(42)

	expectPatient(f.mock, 3, true)
	f.mock.ExpectQuery(`SELECT patient_id FROM visits WHERE id = \$1`).WithArgs(visitID).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow(3))
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO patient_files`).
		WithArgs(int64(3), visitID, sqlmock.AnyArg(), "scan.pdf", sqlmock.AnyArg(), "application/pdf", int64(4), "knee").
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow(11, uploadedAt))
	f.mock.ExpectCommit()

	stored, err := f.svc.Upload(context.Background(), 3, UploadRequest{
		VisitID:     &visitID,
		Description: "knee",
		Files:       []IncomingFile{stageFile(t, f.storage, "scan.pdf", "application/pdf", "%PDF")},
	})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(11), stored[0].ID)
	assert.Equal(t, uploadedAt, stored[0].UploadedAt)
	assert.Regexp(t, `^patients/3/\d+-[0-9a-f]{8}\.pdf$`, stored[0].FilePath)
	assert.Equal(t, filepath.Base(stored[0].FilePath), stored[0].FileName)

	data, err := os.ReadFile(filepath.Join(f.storage.Root(), filepath.FromSlash(stored[0].FilePath)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
	assert.Zero(t, countStaged(t, f.storage), "promoted files leave staging")

	f.publisher.AssertEventCount(t, messaging.EventFileUploaded, 1)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpload_FailedInsertRemovesWrittenFiles(t *testing.T) {
	f := newFixture(t)

	expectPatient(f.mock, 3, true)
	f.mock.ExpectBegin()
	f.mock.ExpectQuery(`INSERT INTO patient_files`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "uploaded_at"}).AddRow(1, time.Now()))
	f.mock.ExpectQuery(`INSERT INTO patient_files`).WillReturnError(errors.New("disk full"))
	f.mock.ExpectRollback()

	_, err := f.svc.Upload(context.Background(), 3, UploadRequest{Files: []IncomingFile{
		stageFile(t, f.storage, "a.txt", "text/plain", "a"),
		stageFile(t, f.storage, "b.txt", "text/plain", "b"),
	}})
	require.Error(t, err)

	assert.Zero(t, countStored(t, f.storage))
	assert.Zero(t, countStaged(t, f.storage))
	f.publisher.AssertEventNotPublished(t, messaging.EventFileUploaded)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpload_UnknownPatientWritesNothing(t *testing.T) {
	f := newFixture(t)
	expectPatient(f.mock, 9, false)

	req := UploadRequest{Files: []IncomingFile{stageFile(t, f.storage, "a.txt", "text/plain", "a")}}
	_, err := f.svc.Upload(context.Background(), 9, req)

	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.Zero(t, countStored(t, f.storage))
	assert.Equal(t, 1, countStaged(t, f.storage), "staged files are left to the caller")
	req.Discard(f.storage)
	assert.Zero(t, countStaged(t, f.storage))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpload_VisitOfAnotherPatient(t *testing.T) {
	f := newFixture(t)
	visitID := int64(5)
	expectPatient(f.mock, 3, true)
	f.mock.ExpectQuery(`SELECT patient_id FROM visits WHERE id = \$1`).WithArgs(visitID).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow(4))

	_, err := f.svc.Upload(context.Background(), 3, UploadRequest{
		VisitID: &visitID,
		Files:   []IncomingFile{stageFile(t, f.storage, "a.txt", "text/plain", "a")},
	})

	assert.ErrorIs(t, err, ErrVisitPatientMismatch)
	assert.Zero(t, countStored(t, f.storage))
}

func TestOpenFile_ResolvesStoredBytes(t *testing.T) {
	f := newFixture(t)
	rel := f.storage.NewPath(3, "x.png")
	storeFile(t, f.storage, rel, "img")

	f.mock.ExpectQuery(`SELECT (.+) FROM patient_files WHERE id = \$1 AND patient_id = \$2`).WithArgs(int64(8), int64(3)).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow(8, 3, nil, filepath.Base(rel), "x.png", rel, "image/png", 3, "", time.Now()))

	meta, fh, err := f.svc.OpenFile(context.Background(), 3, 8)
	require.NoError(t, err)
	defer fh.Close()
	assert.Nil(t, meta.VisitID)

	data, err := io.ReadAll(fh)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestOpenFile_MissingContent(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`SELECT (.+) FROM patient_files WHERE id = \$1 AND patient_id = \$2`).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow(8, 3, nil, "gone.png", "x.png", "patients/3/gone.png", "image/png", 3, "", time.Now()))

	_, _, err := f.svc.OpenFile(context.Background(), 3, 8)
	assert.ErrorIs(t, err, ErrFileContentMissing)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestGetFile_OtherPatient(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`SELECT (.+) FROM patient_files WHERE id = \$1 AND patient_id = \$2`).WithArgs(int64(8), int64(4)).
		WillReturnRows(sqlmock.NewRows(fileCols))

	_, err := f.svc.GetFile(context.Background(), 4, 8)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteFile_RowThenDisk(t *testing.T) {
	f := newFixture(t)
	rel := f.storage.NewPath(3, "a.txt")
	storeFile(t, f.storage, rel, "a")

	f.mock.ExpectQuery(`DELETE FROM patient_files WHERE id = \$1 AND patient_id = \$2 RETURNING file_path`).
		WithArgs(int64(8), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow(rel))

	require.NoError(t, f.svc.DeleteFile(context.Background(), 3, 8))
	assert.Zero(t, countStored(t, f.storage))
	f.publisher.AssertEventCount(t, messaging.EventFileDeleted, 1)
}

func TestDeleteFile_MissingBytesStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`DELETE FROM patient_files`).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("patients/3/already-gone.txt"))

	assert.NoError(t, f.svc.DeleteFile(context.Background(), 3, 8))
}

func TestDeleteFile_NotFound(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery(`DELETE FROM patient_files`).WillReturnRows(sqlmock.NewRows([]string{"file_path"}))

	err := f.svc.DeleteFile(context.Background(), 3, 8)
	assert.ErrorIs(t, err, ErrFileNotFound)
	f.publisher.AssertEventNotPublished(t, messaging.EventFileDeleted)
}

func TestListFiles_FilterByVisit(t *testing.T) {
	f := newFixture(t)
	visitID := int64(42)
	expectPatient(f.mock, 3, true)
	f.mock.ExpectQuery(`FROM patient_files WHERE patient_id = \$1 AND visit_id = \$2 ORDER BY uploaded_at DESC, id DESC`).
		WithArgs(int64(3), visitID).
		WillReturnRows(sqlmock.NewRows(fileCols).
			AddRow(2, 3, 42, "b.pdf", "b.pdf", "patients/3/b.pdf", "application/pdf", 10, "lab", time.Now()))

	files, err := f.svc.ListFiles(context.Background(), 3, &visitID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].VisitID)
	assert.Equal(t, visitID, *files[0].VisitID)
	assert.Equal(t, "lab", files[0].Description)
}
