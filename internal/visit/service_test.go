package visit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/pagination"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/testutil"
)

var visitCols = []string{
	"id", "patient_id", "patient_name", "visit_date", "visit_type", "status",
	"chief_complaint", "symptoms", "diagnosis", "treatment_plan", "notes", "created_at", "updated_at",
}

type fakeRemover struct {
	removed []string
	err     error
}

func (f *fakeRemover) Remove(relPath string) error {
	f.removed = append(f.removed, relPath)
	return f.err
}

type fixture struct {
	svc       *Service
	mock      sqlmock.Sqlmock
	publisher *testutil.MockPublisher
	files     *fakeRemover
}

func newFixture(t *testing.T, policy string) *fixture {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	f := &fixture{mock: mock, publisher: testutil.NewMockPublisher(), files: &fakeRemover{}}
	f.svc = NewService(conn, db.NewTransactor(conn, time.Second), f.files, policy, f.publisher, nil)
	return f
}

// expectCascade queues the statements of a successful delete of visit 42
// holding prescription 7 (2 items, 1 lab test) and one file.
func expectCascade(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM prescriptions WHERE visit_id = \$1`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`DELETE FROM prescription_items WHERE prescription_id = \$1`).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM prescription_lab_tests WHERE prescription_id = \$1`).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM prescription_imaging_studies WHERE prescription_id = \$1`).WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM prescriptions WHERE visit_id = \$1`).WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`DELETE FROM patient_files WHERE visit_id = \$1 RETURNING file_path`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"file_path"}).AddRow("patients/3/1700000000000-deadbeef.pdf"))
	mock.ExpectQuery(`DELETE FROM visits WHERE id = \$1 RETURNING patient_id`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id"}).AddRow(3))
	mock.ExpectCommit()
}

func TestDeleteVisit_CascadesInOrder(t *testing.T) {
	f := newFixture(t, config.CascadeRetainFiles)
	expectCascade(f.mock)

	res, err := f.svc.DeleteVisit(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())

	assert.Equal(t, &DeleteResult{
		Message:              "Visit deleted successfully",
		DeletedVisitID:       42,
		DeletedPrescriptions: 1,
		DeletedFiles:         1,
	}, res)
	assert.Empty(t, f.files.removed)

	f.publisher.AssertEventCount(t, messaging.EventVisitDeleted, 1)
	evt, ok := f.publisher.GetLastEventByKey(messaging.EventVisitDeleted).EventData.(messaging.VisitDeletedEvent)
	require.True(t, ok)
	assert.Equal(t, int64(3), evt.Data.PatientID)
	assert.Equal(t, config.CascadeRetainFiles, evt.Data.FilePolicy)
}

func TestDeleteVisit_PublishFailureDoesNotFailDelete(t *testing.T) {
	f := newFixture(t, config.CascadeRetainFiles)
	f.publisher.Err = errors.New("broker down")
	expectCascade(f.mock)

	res, err := f.svc.DeleteVisit(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), res.DeletedVisitID)
	assert.Zero(t, f.publisher.GetEventCount())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteVisit_DeletePolicyRemovesFilesAfterCommit(t *testing.T) {
	f := newFixture(t, config.CascadeDeleteFiles)
	f.files.err = errors.New("permission denied")
	expectCascade(f.mock)

	res, err := f.svc.DeleteVisit(context.Background(), 42)

	require.NoError(t, err, "disk failures after commit must not fail the request")
	assert.Equal(t, int64(1), res.DeletedFiles)
	assert.Equal(t, []string{"patients/3/1700000000000-deadbeef.pdf"}, f.files.removed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestDeleteVisit_NotFoundTwiceWritesNothing(t *testing.T) {
	f := newFixture(t, config.CascadeDeleteFiles)

	for i := 0; i < 2; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectQuery("SELECT id FROM prescriptions WHERE visit_id").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		f.mock.ExpectExec("DELETE FROM prescriptions WHERE visit_id").
			WillReturnResult(sqlmock.NewResult(0, 0))
		f.mock.ExpectQuery("DELETE FROM patient_files").
			WillReturnRows(sqlmock.NewRows([]string{"file_path"}))
		f.mock.ExpectQuery("DELETE FROM visits").
			WillReturnRows(sqlmock.NewRows([]string{"patient_id"}))
		f.mock.ExpectRollback()
	}

	for i := 0; i < 2; i++ {
		_, err := f.svc.DeleteVisit(context.Background(), 404)
		assert.ErrorIs(t, err, ErrVisitNotFound)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	}

	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.files.removed)
	f.publisher.AssertEventNotPublished(t, messaging.EventVisitDeleted)
}

func TestDeleteVisit_MidwayFailureRollsBack(t *testing.T) {
	f := newFixture(t, config.CascadeDeleteFiles)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM prescriptions WHERE visit_id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	f.mock.ExpectExec("DELETE FROM prescription_items").
		WillReturnResult(sqlmock.NewResult(0, 2))
	f.mock.ExpectExec("DELETE FROM prescription_lab_tests").
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	f.mock.ExpectRollback()

	_, err := f.svc.DeleteVisit(context.Background(), 42)

	require.Error(t, err)
	assert.NotEqual(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.files.removed)
	f.publisher.AssertEventNotPublished(t, messaging.EventVisitDeleted)
}

func TestDeleteVisit_ConnectionLossIsTransient(t *testing.T) {
	f := newFixture(t, config.CascadeRetainFiles)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("SELECT id FROM prescriptions WHERE visit_id").
		WillReturnError(&pq.Error{Code: "08006"})
	f.mock.ExpectRollback()

	_, err := f.svc.DeleteVisit(context.Background(), 42)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateVisit_Defaults(t *testing.T) {
	f := newFixture(t, "")
	now := time.Now()

	f.mock.ExpectQuery("SELECT EXISTS .+ FROM patients").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectQuery("INSERT INTO visits").
		WithArgs(int64(3), sqlmock.AnyArg(), TypePrimary, StatusWaiting, "Cough", nil, nil, nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	f.mock.ExpectQuery(`FROM visits v JOIN patients p ON p.id = v.patient_id WHERE v.id = \$1`).WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(visitCols).
			AddRow(42, 3, "Jane Doe", now, TypePrimary, StatusWaiting, "Cough", nil, nil, nil, nil, now, nil))

	v, err := f.svc.CreateVisit(context.Background(), CreateVisitRequest{PatientID: 3, ChiefComplaint: " Cough "})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", v.PatientName)
	assert.Equal(t, StatusWaiting, v.Status)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateVisit_UnknownPatient(t *testing.T) {
	f := newFixture(t, "")

	f.mock.ExpectQuery("SELECT EXISTS .+ FROM patients").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := f.svc.CreateVisit(context.Background(), CreateVisitRequest{PatientID: 3})
	assert.ErrorIs(t, err, ErrUnknownPatient)
}

func TestCreateVisit_Validation(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.svc.CreateVisit(ctx, CreateVisitRequest{})
	assert.ErrorIs(t, err, ErrPatientRequired)
	_, err = f.svc.CreateVisit(ctx, CreateVisitRequest{PatientID: 1, VisitType: "emergency"})
	assert.ErrorIs(t, err, ErrInvalidVisitType)
	_, err = f.svc.CreateVisit(ctx, CreateVisitRequest{PatientID: 1, Status: "done"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = f.svc.CreateVisit(ctx, CreateVisitRequest{PatientID: 1, VisitDate: "tomorrow"})
	assert.ErrorIs(t, err, ErrInvalidVisitDate)
}

func TestListVisits_Filters(t *testing.T) {
	f := newFixture(t, "")
	patientID := int64(3)

	f.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM visits v JOIN patients p ON p.id = v.patient_id WHERE v.status = \$1 AND v.patient_id = \$2`).
		WithArgs("completed", patientID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	f.mock.ExpectQuery(`ORDER BY v.visit_date DESC, v.id DESC LIMIT \$3 OFFSET \$4`).
		WithArgs("completed", patientID, 20, 0).
		WillReturnRows(sqlmock.NewRows(visitCols))

	page, err := f.svc.ListVisits(context.Background(), pagination.Params{Page: 1, Limit: 20},
		ListFilter{Status: "Completed", PatientID: &patientID})
	require.NoError(t, err)
	assert.NotNil(t, page.Data)
	assert.Equal(t, 0, page.Pagination.TotalRecords)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.UpdateStatus(context.Background(), 42, "archived")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	f.mock.ExpectExec(`UPDATE visits SET status = \$1`).WithArgs(StatusCancelled, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = f.svc.UpdateStatus(context.Background(), 42, "Cancelled")
	assert.ErrorIs(t, err, ErrVisitNotFound)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestUpdateVisit_NoFields(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.UpdateVisit(context.Background(), 42, UpdateVisitRequest{})
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
}
