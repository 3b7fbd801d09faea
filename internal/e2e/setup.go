//go:build integration

package e2e

import (
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/files"
	httpserver "github.com/WailSalutem-Health-Care/clinic-service/internal/http"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/testutil"
)

// TestServer represents a complete E2E test environment
type TestServer struct {
	Server        *httptest.Server
	DB            *sql.DB
	MockPublisher *testutil.MockPublisher
	Storage       *files.Storage
}

// SetupE2ETest starts the full router against the real test database, an
// in-memory publisher and a temporary upload directory.
func SetupE2ETest(t *testing.T, filePolicy string) *TestServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	mockPublisher := testutil.NewMockPublisher()

	storage, err := files.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create upload storage: %v", err)
	}

	cfg := &config.Config{
		DBTxTimeout:        5 * time.Second,
		RequestTimeout:     10 * time.Second,
		UploadMaxFileSize:  50 * 1024 * 1024,
		UploadMaxFiles:     10,
		FilesCascadePolicy: filePolicy,
	}

	router := httpserver.SetupRouter(httpserver.Dependencies{
		DB:        db,
		Config:    cfg,
		Publisher: mockPublisher,
		Storage:   storage,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:        server,
		DB:            db,
		MockPublisher: mockPublisher,
		Storage:       storage,
	}
}

// NewClient creates a new HTTP test client for this server
func (ts *TestServer) NewClient() *testutil.HTTPTestClient {
	return testutil.NewHTTPTestClient(ts.Server.URL)
}

func (ts *TestServer) count(t *testing.T, query string, args ...interface{}) int {
	t.Helper()
	var n int
	if err := ts.DB.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	return n
}

func (ts *TestServer) storedFiles(t *testing.T) int {
	t.Helper()
	n := 0
	if err := ts.Storage.Walk(func(files.StoredFile) error {
		n++
		return nil
	}); err != nil {
		t.Fatalf("Failed to walk upload dir: %v", err)
	}
	return n
}
