//go:build integration

package e2e

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/testutil"
)

type idResponse struct {
	ID int64 `json:"id"`
}

func createPatient(t *testing.T, client *testutil.HTTPTestClient, first, last string) int64 {
	t.Helper()
	resp := client.POST(t, "/patients", map[string]interface{}{"first_name": first, "last_name": last})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var result struct {
		Patient idResponse `json:"patient"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Patient.ID
}

func createVisit(t *testing.T, client *testutil.HTTPTestClient, patientID int64) int64 {
	t.Helper()
	resp := client.POST(t, "/visits", map[string]interface{}{"patient_id": patientID, "chief_complaint": "fever"})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var result struct {
		Visit struct {
			ID          int64  `json:"id"`
			VisitType   string `json:"visit_type"`
			Status      string `json:"status"`
			PatientName string `json:"patient_name"`
		} `json:"visit"`
	}
	testutil.DecodeJSON(t, resp, &result)
	if result.Visit.VisitType != "primary" || result.Visit.Status != "waiting" {
		t.Errorf("Expected defaults primary/waiting, got %s/%s", result.Visit.VisitType, result.Visit.Status)
	}
	return result.Visit.ID
}

// TestE2E_VisitCascadeDelete builds a visit holding a prescription with
// children and an uploaded file, then deletes the visit.
func TestE2E_VisitCascadeDelete(t *testing.T) {
	ts := SetupE2ETest(t, config.CascadeRetainFiles)
	client := ts.NewClient()

	patientID := createPatient(t, client, "Ana", "Silva")
	visitID := createVisit(t, client, patientID)
	medicineID := testutil.CreateTestMedicine(t, ts.DB, "Amoxicillin")
	labTestID := testutil.CreateTestLabTest(t, ts.DB, "CBC")

	resp := client.POST(t, "/prescriptions", map[string]interface{}{
		"visit_id":  visitID,
		"diagnosis": "Sinusitis",
		"prescription_items": []map[string]interface{}{
			{"medicine_id": medicineID, "dosage": "500mg", "frequency": "3x/day"},
			{"medicine_id": medicineID, "dosage": "250mg", "frequency": "2x/day"},
		},
		"prescription_lab_tests": []map[string]interface{}{{"lab_test_id": labTestID}},
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = client.UploadFile(t, fmt.Sprintf("/patients/%d/files", patientID), "xray.png", []byte("png"),
		map[string]string{"visit_id": fmt.Sprint(visitID)})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = client.DELETE(t, fmt.Sprintf("/visits/%d", visitID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var result struct {
		DeletedVisitID       int64 `json:"deletedVisitId"`
		DeletedPrescriptions int64 `json:"deletedPrescriptions"`
	}
	testutil.DecodeJSON(t, resp, &result)
	if result.DeletedVisitID != visitID || result.DeletedPrescriptions != 1 {
		t.Errorf("Unexpected delete result: %+v", result)
	}

	for _, table := range []string{
		"visits", "prescriptions", "prescription_items", "prescription_lab_tests",
		"prescription_imaging_studies", "patient_files",
	} {
		if n := ts.count(t, "SELECT COUNT(*) FROM "+table); n != 0 {
			t.Errorf("Expected %s to be empty after cascade, found %d rows", table, n)
		}
	}
	if n := ts.count(t, "SELECT COUNT(*) FROM patients WHERE id = $1", patientID); n != 1 {
		t.Error("Patient must survive the visit delete")
	}
	if ts.storedFiles(t) != 1 {
		t.Error("Retain policy must leave the bytes on disk")
	}

	resp = client.DELETE(t, fmt.Sprintf("/visits/%d", visitID))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()

	ts.MockPublisher.AssertEventCount(t, messaging.EventVisitDeleted, 1)
}

func TestE2E_VisitCascadeDelete_DeletePolicy(t *testing.T) {
	ts := SetupE2ETest(t, config.CascadeDeleteFiles)
	client := ts.NewClient()

	patientID := createPatient(t, client, "Rui", "Costa")
	visitID := createVisit(t, client, patientID)

	resp := client.UploadFile(t, fmt.Sprintf("/patients/%d/files", patientID), "lab.pdf", []byte("%PDF"),
		map[string]string{"visit_id": fmt.Sprint(visitID)})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = client.DELETE(t, fmt.Sprintf("/visits/%d", visitID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()

	if n := ts.storedFiles(t); n != 0 {
		t.Errorf("Delete policy must remove the bytes, %d files left", n)
	}
}

func TestE2E_PrescriptionAssembly(t *testing.T) {
	ts := SetupE2ETest(t, config.CascadeRetainFiles)
	client := ts.NewClient()

	patientID := createPatient(t, client, "Maria", "Lopes")
	visitID := createVisit(t, client, patientID)
	medicineID := testutil.CreateTestMedicine(t, ts.DB, "Ibuprofen")
	imagingID := testutil.CreateTestImagingStudy(t, ts.DB, "Chest X-Ray")

	resp := client.POST(t, "/prescriptions", map[string]interface{}{
		"visit_id":           visitID,
		"prescription_items": []map[string]interface{}{{"medicine_id": medicineID, "dosage": "200mg"}},
		"prescription_imaging_studies": []map[string]interface{}{
			{"imaging_study_id": imagingID, "notes": "PA view"},
		},
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	resp.Body.Close()

	resp = client.GET(t, fmt.Sprintf("/visits/%d/prescription", visitID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var p struct {
		PatientID int64 `json:"patient_id"`
		Items     []struct {
			MedicineName string `json:"medicine_name"`
		} `json:"prescription_items"`
		LabTests []interface{} `json:"prescription_lab_tests"`
		Imaging  []struct {
			ImagingStudyName string `json:"imaging_study_name"`
			Comments         string `json:"comments"`
			Notes            string `json:"notes"`
		} `json:"prescription_imaging_studies"`
	}
	testutil.DecodeJSON(t, resp, &p)

	if p.PatientID != patientID {
		t.Errorf("Expected patient %d derived from the visit, got %d", patientID, p.PatientID)
	}
	if len(p.Items) != 1 || p.Items[0].MedicineName != "Ibuprofen" {
		t.Errorf("Unexpected items: %+v", p.Items)
	}
	if p.LabTests == nil || len(p.LabTests) != 0 {
		t.Errorf("Expected an empty lab test array, got %v", p.LabTests)
	}
	if len(p.Imaging) != 1 || p.Imaging[0].Comments != "PA view" || p.Imaging[0].Notes != "PA view" {
		t.Errorf("Unexpected imaging studies: %+v", p.Imaging)
	}

	otherVisit := createVisit(t, client, patientID)
	resp = client.GET(t, fmt.Sprintf("/visits/%d/prescription", otherVisit))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestE2E_FileUploadAndDownload(t *testing.T) {
	ts := SetupE2ETest(t, config.CascadeRetainFiles)
	client := ts.NewClient()

	patientID := createPatient(t, client, "Joao", "Pereira")
	content := []byte("blood work results")

	resp := client.UploadFile(t, fmt.Sprintf("/patients/%d/files", patientID), "results.txt", content,
		map[string]string{"description": "annual"})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var uploaded struct {
		FileID int64 `json:"fileId"`
	}
	testutil.DecodeJSON(t, resp, &uploaded)

	resp = client.GET(t, fmt.Sprintf("/patients/%d/files/%d/download", patientID, uploaded.FileID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !bytes.Equal(body, content) {
		t.Errorf("Downloaded bytes differ: %q", body)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename=results.txt` {
		t.Errorf("Unexpected Content-Disposition %q", got)
	}

	resp = client.UploadFile(t, fmt.Sprintf("/patients/%d/files", patientID), "payload.exe", []byte("MZ"), nil)
	testutil.AssertStatusCode(t, resp, http.StatusBadRequest)
	var rejected struct {
		Code string `json:"code"`
	}
	testutil.DecodeJSON(t, resp, &rejected)
	if rejected.Code != "file_type_not_allowed" {
		t.Errorf("Expected file_type_not_allowed, got %q", rejected.Code)
	}
	if n := ts.storedFiles(t); n != 1 {
		t.Errorf("Rejected upload must not touch disk, %d files stored", n)
	}

	resp = client.DELETE(t, fmt.Sprintf("/patients/%d/files/%d", patientID, uploaded.FileID))
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = client.GET(t, fmt.Sprintf("/patients/%d/files/%d/preview", patientID, uploaded.FileID))
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
