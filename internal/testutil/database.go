package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
)

const defaultTestDSN = "host=localhost port=5432 user=postgres password=postgres dbname=clinic_test sslmode=disable"

// clinicTables lists every table the tests write to, children first.
var clinicTables = []string{
	"prescription_imaging_studies",
	"prescription_lab_tests",
	"prescription_items",
	"prescriptions",
	"patient_files",
	"visits",
	"patients",
	"medicines",
	"lab_tests",
	"imaging_studies",
}

// SetupTestDB connects to the test database named by TEST_DATABASE_URL,
// applies the migrations and truncates every clinic table when the test ends.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		connStr = defaultTestDSN
	}

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("Failed to ping test database: %v", err)
	}

	if _, err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		CleanupTestDB(t, conn)
		conn.Close()
	})
	return conn
}

// CleanupTestDB removes all clinic data and resets the id sequences.
func CleanupTestDB(t *testing.T, conn *sql.DB) {
	t.Helper()

	query := "TRUNCATE TABLE "
	for i, table := range clinicTables {
		if i > 0 {
			query += ", "
		}
		query += table
	}
	query += " RESTART IDENTITY CASCADE"

	if _, err := conn.Exec(query); err != nil {
		t.Logf("Warning: Failed to clean up test data: %v", err)
	}
}

// CreateTestPatient inserts a patient and returns its id.
func CreateTestPatient(t *testing.T, conn *sql.DB, firstName, lastName string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(
		`INSERT INTO patients (first_name, last_name) VALUES ($1, $2) RETURNING id`,
		firstName, lastName,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test patient: %v", err)
	}
	return id
}

// CreateTestVisit inserts a waiting primary visit for patientID.
func CreateTestVisit(t *testing.T, conn *sql.DB, patientID int64) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(
		`INSERT INTO visits (patient_id, chief_complaint) VALUES ($1, 'checkup') RETURNING id`,
		patientID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to create test visit: %v", err)
	}
	return id
}

func createNamed(t *testing.T, conn *sql.DB, table, name string) int64 {
	t.Helper()
	var id int64
	if err := conn.QueryRow(`INSERT INTO `+table+` (name) VALUES ($1) RETURNING id`, name).Scan(&id); err != nil {
		t.Fatalf("Failed to create test %s row: %v", table, err)
	}
	return id
}

// CreateTestMedicine inserts a catalog medicine and returns its id.
func CreateTestMedicine(t *testing.T, conn *sql.DB, name string) int64 {
	t.Helper()
	return createNamed(t, conn, "medicines", name)
}

// CreateTestLabTest inserts a catalog lab test and returns its id.
func CreateTestLabTest(t *testing.T, conn *sql.DB, name string) int64 {
	t.Helper()
	return createNamed(t, conn, "lab_tests", name)
}

// CreateTestImagingStudy inserts a catalog imaging study and returns its id.
func CreateTestImagingStudy(t *testing.T, conn *sql.DB, name string) int64 {
	t.Helper()
	return createNamed(t, conn, "imaging_studies", name)
}
