package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
	"github.com/fluxmarket/availability-api/pkg/export"
	"github.com/fluxmarket/availability-api/pkg/jobs"
	"github.com/fluxmarket/availability-api/pkg/storage"
)

const exportDateLayout = "2006-01-02"

// calendarResolver is the slice of CalendarService that export generation needs.
type calendarResolver interface {
	ResolveRange(ctx context.Context, providerID string, r models.DateRange) ([]models.CalendarEvent, error)
}

// ExportServiceConfig tunes export processing.
type ExportServiceConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
	Workers         int
	MaxRetries      int
}

// ExportService renders provider calendars to CSV or PDF in the background.
// Jobs are tracked in memory only; the dispatch queue does not survive a
// restart, so persisting job rows would not buy any recovery.
type ExportService struct {
	resolver  calendarResolver
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig

	queue *jobs.Queue

	mu      sync.RWMutex
	jobsMap map[string]*models.ExportJob

	cleanupCancel context.CancelFunc
}

// NewExportService wires storage, signing and the worker queue.
func NewExportService(resolver calendarResolver, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) (*ExportService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}

	store, err := storage.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	s := &ExportService{
		resolver:  resolver,
		storage:   store,
		signer:    storage.NewSignedURLSigner(cfg.SignedURLSecret, cfg.SignedURLTTL),
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		jobsMap:   make(map[string]*models.ExportJob),
	}

	s.queue = jobs.NewQueue("calendar-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})

	return s, nil
}

// Start launches workers and the stale file cleanup loop.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)

	if s.cfg.CleanupInterval > 0 {
		cleanupCtx, cancel := context.WithCancel(ctx)
		s.cleanupCancel = cancel
		go s.cleanupLoop(cleanupCtx)
	}
}

// Stop drains workers and halts cleanup.
func (s *ExportService) Stop() {
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.queue.Stop()
}

// Enqueue validates the request and schedules an export job.
func (s *ExportService) Enqueue(ctx context.Context, providerID, requestedBy string, req dto.CreateExportRequest) (*models.ExportJob, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}
	if providerID == "" {
		return nil, appErrors.ErrNoProvider
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}

	from, err := time.Parse(exportDateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be formatted YYYY-MM-DD")
	}
	to, err := time.Parse(exportDateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be formatted YYYY-MM-DD")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	job := &models.ExportJob{
		ID:         uuid.NewString(),
		ProviderID: providerID,
		Range:      models.DateRange{From: from, To: to},
		Format:     req.Format,
		Status:     models.ExportStatusQueued,
		CreatedBy:  requestedBy,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobsMap[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "calendar-export"}); err != nil {
		s.fail(job.ID, fmt.Sprintf("enqueue export: %v", err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	return s.snapshot(job.ID), nil
}

// Job returns a copy of the job, scoped to the owning provider.
func (s *ExportService) Job(jobID, providerID string) (*models.ExportJob, error) {
	s.mu.RLock()
	job, ok := s.jobsMap[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.ProviderID != providerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export belongs to another provider")
	}
	return s.snapshot(jobID), nil
}

// OpenDownload validates a signed token and returns the export file.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	s.mu.RLock()
	job, ok := s.jobsMap[jobID]
	s.mu.RUnlock()
	if !ok || job.Status != models.ExportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, relPath, nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	s.transition(job.ID, models.ExportStatusProcessing)

	s.mu.RLock()
	record, ok := s.jobsMap[job.ID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("export job %s vanished", job.ID)
	}

	events, err := s.resolver.ResolveRange(ctx, record.ProviderID, record.Range)
	if err != nil {
		s.fail(job.ID, err.Error())
		return err
	}

	dataset := buildExportDataset(events)

	var payload []byte
	switch record.Format {
	case models.ExportFormatPDF:
		title := fmt.Sprintf("Calendar %s to %s", record.Range.From.Format(exportDateLayout), record.Range.To.Format(exportDateLayout))
		payload, err = s.pdf.Render(dataset, title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.fail(job.ID, err.Error())
		return err
	}

	relPath := fmt.Sprintf("%s/%s.%s", record.ProviderID, job.ID, record.Format)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		s.fail(job.ID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, err.Error())
		return err
	}

	url := fmt.Sprintf("/exports/download?token=%s", token)
	now := time.Now().UTC()

	s.mu.Lock()
	if j, ok := s.jobsMap[job.ID]; ok {
		j.Status = models.ExportStatusFinished
		j.ResultURL = &url
		j.FinishedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("export finished",
		zap.String("job_id", job.ID),
		zap.String("provider_id", record.ProviderID),
		zap.String("format", string(record.Format)),
		zap.Int("events", len(events)))
	return nil
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.storage.CleanupOlderThan(s.cfg.SignedURLTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

func (s *ExportService) transition(jobID string, status models.ExportStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsMap[jobID]; ok {
		job.Status = status
	}
}

func (s *ExportService) fail(jobID, message string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsMap[jobID]; ok {
		job.Status = models.ExportStatusFailed
		job.ErrorMessage = &message
		job.FinishedAt = &now
	}
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsMap[jobID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

// buildExportDataset flattens resolved events into the tabular export layout,
// sorted by start time for readability.
func buildExportDataset(events []models.CalendarEvent) export.Dataset {
	sorted := make([]models.CalendarEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	rows := make([][]string, 0, len(sorted))
	for _, ev := range sorted {
		status := ""
		if ev.BookingStatus != "" {
			status = string(ev.BookingStatus)
		}
		reason := ""
		if ev.BlockReason != nil {
			reason = *ev.BlockReason
		}
		rows = append(rows, []string{
			ev.Start.Format(time.RFC3339),
			ev.End.Format(time.RFC3339),
			string(ev.Type),
			ev.Title,
			status,
			reason,
		})
	}

	return export.Dataset{
		Headers: []string{"Start", "End", "Type", "Title", "Booking Status", "Block Reason"},
		Rows:    rows,
	}
}
