package dto

import "github.com/fluxmarket/availability-api/internal/models"

// CreateExportRequest queues a calendar export for a date range.
type CreateExportRequest struct {
	Format    models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	StartDate string              `json:"start_date" validate:"required"`
	EndDate   string              `json:"end_date" validate:"required"`
}

// ExportJobResponse acknowledges a queued export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse reports job progress and, once finished, the signed
// download URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
