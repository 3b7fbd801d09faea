package telemetry

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/WailSalutem-Health-Care/clinic-service"

// Metrics holds the business metrics of the clinic service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	PatientTotal         metric.Int64Counter
	VisitTotal           metric.Int64Counter
	CascadeDeletedRows   metric.Int64Counter
	PrescriptionTotal    metric.Int64Counter
	AssemblyDurationMs   metric.Float64Histogram
	FileTotal            metric.Int64Counter
	UploadedBytes        metric.Int64Counter
	UploadRejectionTotal metric.Int64Counter
}

// InitMetrics registers the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	patientTotal, err := meter.Int64Counter(
		"clinic_patient_operations_total",
		metric.WithDescription("Total number of patient operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	visitTotal, err := meter.Int64Counter(
		"clinic_visit_operations_total",
		metric.WithDescription("Total number of visit operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	cascadeDeletedRows, err := meter.Int64Counter(
		"clinic_visit_cascade_deleted_rows_total",
		metric.WithDescription("Rows removed by cascading visit deletes, by table"),
		metric.WithUnit("{row}"),
	)
	if err != nil {
		return nil, err
	}

	prescriptionTotal, err := meter.Int64Counter(
		"clinic_prescription_operations_total",
		metric.WithDescription("Total number of prescription operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	assemblyDurationMs, err := meter.Float64Histogram(
		"clinic_prescription_assembly_duration_ms",
		metric.WithDescription("Time spent assembling a prescription with its line items"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	fileTotal, err := meter.Int64Counter(
		"clinic_file_operations_total",
		metric.WithDescription("Total number of patient file operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	uploadedBytes, err := meter.Int64Counter(
		"clinic_file_uploaded_bytes_total",
		metric.WithDescription("Bytes written to the upload directory"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uploadRejectionTotal, err := meter.Int64Counter(
		"clinic_file_upload_rejections_total",
		metric.WithDescription("Uploads rejected by validation, by code"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("custom metrics initialized")

	return &Metrics{
		PatientTotal:         patientTotal,
		VisitTotal:           visitTotal,
		CascadeDeletedRows:   cascadeDeletedRows,
		PrescriptionTotal:    prescriptionTotal,
		AssemblyDurationMs:   assemblyDurationMs,
		FileTotal:            fileTotal,
		UploadedBytes:        uploadedBytes,
		UploadRejectionTotal: uploadRejectionTotal,
	}, nil
}

func (m *Metrics) RecordPatientOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PatientTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordVisitOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.VisitTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordCascadeDelete records the rows removed from one table by a visit delete.
func (m *Metrics) RecordCascadeDelete(ctx context.Context, table string, rows int64) {
	if m == nil || rows <= 0 {
		return
	}
	m.CascadeDeletedRows.Add(ctx, rows, metric.WithAttributes(attribute.String("table", table)))
}

func (m *Metrics) RecordPrescriptionOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PrescriptionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordAssembly(ctx context.Context, lookup string, durationMs float64, found bool) {
	if m == nil {
		return
	}
	m.AssemblyDurationMs.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("lookup", lookup),
		attribute.Bool("found", found),
	))
}

func (m *Metrics) RecordFileOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.FileTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

func (m *Metrics) RecordUploadedBytes(ctx context.Context, mimeType string, n int64) {
	if m == nil {
		return
	}
	m.UploadedBytes.Add(ctx, n, metric.WithAttributes(attribute.String("mime_type", mimeType)))
}

func (m *Metrics) RecordUploadRejection(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.UploadRejectionTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
