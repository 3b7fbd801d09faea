package http

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/catalog"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/config"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/db"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/files"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/metrics"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/patient"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/prescription"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/telemetry"
	"github.com/WailSalutem-Health-Care/clinic-service/internal/visit"
)

const serviceName = "clinic-service"

// routeUploadFiles reads a body that may legitimately take longer than
// REQUEST_TIMEOUT; the handler bounds its own storage work instead.
const routeUploadFiles = "files.upload"

// Dependencies are the shared resources the handlers are built from.
type Dependencies struct {
	DB        *sql.DB
	Config    *config.Config
	Publisher messaging.PublisherInterface
	Metrics   *telemetry.Metrics
	Storage   *files.Storage
}

// SetupRouter initializes all routes for the application
func SetupRouter(deps Dependencies) *mux.Router {
	cfg := deps.Config
	tx := db.NewTransactor(deps.DB, cfg.DBTxTimeout)

	// Initialize patient components
	patientRepo := patient.NewRepository(deps.DB)
	patientService := patient.NewService(patientRepo, deps.Publisher, deps.Metrics)
	patientHandler := patient.NewHandler(patientService)

	// Initialize visit components
	visitService := visit.NewService(deps.DB, tx, deps.Storage, cfg.FilesCascadePolicy, deps.Publisher, deps.Metrics)
	visitHandler := visit.NewHandler(visitService)

	// Initialize prescription components
	prescriptionService := prescription.NewService(deps.DB, tx, deps.Publisher, deps.Metrics)
	prescriptionHandler := prescription.NewHandler(prescriptionService)

	// Initialize catalog components
	catalogService := catalog.NewService(catalog.NewRepository(deps.DB), tx)
	catalogHandler := catalog.NewHandler(catalogService)

	// Initialize file components
	fileService := files.NewService(deps.DB, tx, deps.Storage, deps.Publisher, deps.Metrics)
	fileHandler := files.NewHandler(fileService, deps.Storage, files.Limits{
		MaxFileSize: cfg.UploadMaxFileSize,
		MaxFiles:    cfg.UploadMaxFiles,
		Timeout:     cfg.RequestTimeout,
	})

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "route not found", "code": "not_found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed", "code": "method_not_allowed"})
	})

	r.Use(otelmux.Middleware(serviceName))
	r.Use(RequestLogger)
	r.Use(metrics.Middleware)
	r.Use(Timeout(cfg.RequestTimeout, routeUploadFiles))

	// Health and metrics
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	}).Methods("GET")

	r.HandleFunc("/health/db", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), deps.DB); err != nil {
			apperr.WriteError(w, r, apperr.Transient("database unavailable", err))
			return
		}
		apperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "connected"})
	}).Methods("GET")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Patient routes
	r.HandleFunc("/patients", patientHandler.CreatePatient).Methods("POST")
	r.HandleFunc("/patients", patientHandler.ListPatients).Methods("GET")
	r.HandleFunc("/patients/{id}", patientHandler.GetPatient).Methods("GET")
	r.HandleFunc("/patients/{id}", patientHandler.UpdatePatient).Methods("PUT")
	r.HandleFunc("/patients/{id}", patientHandler.DeletePatient).Methods("DELETE")
	r.HandleFunc("/patients/{id}/visits", visitHandler.ListPatientVisits).Methods("GET")
	r.HandleFunc("/patients/{id}/prescriptions", prescriptionHandler.ListPatientPrescriptions).Methods("GET")

	// Patient file routes
	r.HandleFunc("/patients/{patientId}/files", fileHandler.UploadFiles).Methods("POST").Name(routeUploadFiles)
	r.HandleFunc("/patients/{patientId}/files", fileHandler.ListFiles).Methods("GET")
	r.HandleFunc("/patients/{patientId}/files/{fileId}", fileHandler.GetFile).Methods("GET")
	r.HandleFunc("/patients/{patientId}/files/{fileId}", fileHandler.DeleteFile).Methods("DELETE")
	r.HandleFunc("/patients/{patientId}/files/{fileId}/download", fileHandler.DownloadFile).Methods("GET")
	r.HandleFunc("/patients/{patientId}/files/{fileId}/preview", fileHandler.PreviewFile).Methods("GET")

	// Visit routes
	r.HandleFunc("/visits", visitHandler.CreateVisit).Methods("POST")
	r.HandleFunc("/visits", visitHandler.ListVisits).Methods("GET")
	r.HandleFunc("/visits/{id}", visitHandler.GetVisit).Methods("GET")
	r.HandleFunc("/visits/{id}", visitHandler.UpdateVisit).Methods("PUT")
	r.HandleFunc("/visits/{id}", visitHandler.DeleteVisit).Methods("DELETE")
	r.HandleFunc("/visits/{id}/status", visitHandler.UpdateStatus).Methods("PATCH")
	r.HandleFunc("/visits/{visitId}/prescription", prescriptionHandler.GetVisitPrescription).Methods("GET")

	// Prescription routes
	r.HandleFunc("/prescriptions", prescriptionHandler.CreatePrescription).Methods("POST")
	r.HandleFunc("/prescriptions/{id}", prescriptionHandler.GetPrescription).Methods("GET")
	r.HandleFunc("/prescriptions/{id}", prescriptionHandler.UpdatePrescription).Methods("PUT")
	r.HandleFunc("/prescriptions/{id}", prescriptionHandler.DeletePrescription).Methods("DELETE")
	r.HandleFunc("/prescriptions/{id}/items", prescriptionHandler.AddItem).Methods("POST")
	r.HandleFunc("/prescriptions/{id}/items/{itemId}", prescriptionHandler.UpdateItem).Methods("PUT")
	r.HandleFunc("/prescriptions/{id}/items/{itemId}", prescriptionHandler.DeleteItem).Methods("DELETE")
	r.HandleFunc("/prescriptions/{id}/lab-tests", prescriptionHandler.AddLabTest).Methods("POST")
	r.HandleFunc("/prescriptions/{id}/lab-tests/{labTestItemId}", prescriptionHandler.DeleteLabTest).Methods("DELETE")
	r.HandleFunc("/prescriptions/{id}/imaging-studies", prescriptionHandler.AddImagingStudy).Methods("POST")
	r.HandleFunc("/prescriptions/{id}/imaging-studies/{imagingItemId}", prescriptionHandler.UpdateImagingStudy).Methods("PUT")
	r.HandleFunc("/prescriptions/{id}/imaging-studies/{imagingItemId}", prescriptionHandler.DeleteImagingStudy).Methods("DELETE")

	// Catalog routes
	r.HandleFunc("/medicines", catalogHandler.ListMedicines).Methods("GET")
	r.HandleFunc("/medicines", catalogHandler.CreateMedicine).Methods("POST")
	r.HandleFunc("/lab-tests", catalogHandler.ListLabTests).Methods("GET")
	r.HandleFunc("/lab-tests", catalogHandler.CreateLabTest).Methods("POST")
	r.HandleFunc("/imaging-studies", catalogHandler.ListImagingStudies).Methods("GET")
	r.HandleFunc("/imaging-studies", catalogHandler.CreateImagingStudy).Methods("POST")

	return r
}
