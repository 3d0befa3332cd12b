package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
)

type fakeResolver struct {
	events []models.CalendarEvent
	err    error
}

func (f *fakeResolver) ResolveRange(ctx context.Context, providerID string, r models.DateRange) ([]models.CalendarEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func newTestExportService(t *testing.T, resolver *fakeResolver) *ExportService {
	t.Helper()
	svc, err := NewExportService(resolver, nil, zap.NewNop(), ExportServiceConfig{
		Enabled:         true,
		StorageDir:      t.TempDir(),
		SignedURLSecret: "test-secret",
		SignedURLTTL:    time.Hour,
		Workers:         1,
		MaxRetries:      1,
	})
	require.NoError(t, err)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForJob(t *testing.T, svc *ExportService, jobID, providerID string, want models.ExportStatus) *models.ExportJob {
	t.Helper()
	var job *models.ExportJob
	require.Eventually(t, func() bool {
		current, err := svc.Job(jobID, providerID)
		if err != nil {
			return false
		}
		job = current
		return current.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return job
}

func TestExportServiceCSVRoundTrip(t *testing.T) {
	resolver := &fakeResolver{
		events: []models.CalendarEvent{
			{
				ID:            "booking-1",
				Title:         "Haircut",
				Start:         testMonday.Add(10 * time.Hour),
				End:           testMonday.Add(11 * time.Hour),
				Type:          models.EventBooking,
				BookingStatus: models.BookingAccepted,
			},
		},
	}
	svc := newTestExportService(t, resolver)

	job, err := svc.Enqueue(context.Background(), "prov-1", "prov-1", dto.CreateExportRequest{
		Format:    models.ExportFormatCSV,
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, job.Status)

	finished := waitForJob(t, svc, job.ID, "prov-1", models.ExportStatusFinished)
	require.NotNil(t, finished.ResultURL)

	token := strings.TrimPrefix(*finished.ResultURL, "/exports/download?token=")
	file, relPath, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(relPath, ".csv"))
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Haircut")
	assert.Contains(t, string(content), "Accepted")
}

func TestExportServicePDF(t *testing.T) {
	resolver := &fakeResolver{
		events: []models.CalendarEvent{
			{ID: "slot-1", Title: "Available", Start: testMonday.Add(9 * time.Hour), End: testMonday.Add(12 * time.Hour), Type: models.EventAvailability},
		},
	}
	svc := newTestExportService(t, resolver)

	job, err := svc.Enqueue(context.Background(), "prov-1", "prov-1", dto.CreateExportRequest{
		Format:    models.ExportFormatPDF,
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
	})
	require.NoError(t, err)

	finished := waitForJob(t, svc, job.ID, "prov-1", models.ExportStatusFinished)
	require.NotNil(t, finished.ResultURL)

	token := strings.TrimPrefix(*finished.ResultURL, "/exports/download?token=")
	file, relPath, err := svc.OpenDownload(token)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(relPath, ".pdf"))
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportServiceValidation(t *testing.T) {
	svc := newTestExportService(t, &fakeResolver{})

	cases := []struct {
		name string
		req  dto.CreateExportRequest
	}{
		{"unknown format", dto.CreateExportRequest{Format: "xlsx", StartDate: "2026-03-02", EndDate: "2026-03-08"}},
		{"bad start date", dto.CreateExportRequest{Format: models.ExportFormatCSV, StartDate: "03/02/2026", EndDate: "2026-03-08"}},
		{"inverted range", dto.CreateExportRequest{Format: models.ExportFormatCSV, StartDate: "2026-03-08", EndDate: "2026-03-02"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Enqueue(context.Background(), "prov-1", "prov-1", tc.req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestExportServiceFailedResolution(t *testing.T) {
	svc := newTestExportService(t, &fakeResolver{err: assertErr("store down")})

	job, err := svc.Enqueue(context.Background(), "prov-1", "prov-1", dto.CreateExportRequest{
		Format:    models.ExportFormatCSV,
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
	})
	require.NoError(t, err)

	failed := waitForJob(t, svc, job.ID, "prov-1", models.ExportStatusFailed)
	require.NotNil(t, failed.ErrorMessage)
	assert.Contains(t, *failed.ErrorMessage, "store down")
}

func TestExportServiceScopesJobsToProvider(t *testing.T) {
	svc := newTestExportService(t, &fakeResolver{})

	job, err := svc.Enqueue(context.Background(), "prov-1", "prov-1", dto.CreateExportRequest{
		Format:    models.ExportFormatCSV,
		StartDate: "2026-03-02",
		EndDate:   "2026-03-08",
	})
	require.NoError(t, err)

	_, err = svc.Job(job.ID, "prov-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
