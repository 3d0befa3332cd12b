package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/fluxmarket/availability-api/internal/dto"
	"github.com/fluxmarket/availability-api/internal/models"
	appErrors "github.com/fluxmarket/availability-api/pkg/errors"
	"github.com/fluxmarket/availability-api/pkg/response"
)

type exportService interface {
	Enqueue(ctx context.Context, providerID, requestedBy string, req dto.CreateExportRequest) (*models.ExportJob, error)
	Job(jobID, providerID string) (*models.ExportJob, error)
	OpenDownload(token string) (*os.File, string, error)
}

// ExportHandler exposes asynchronous calendar export endpoints.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Create godoc
// @Summary Queue a calendar export
// @Tags Exports
// @Accept json
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param payload body dto.CreateExportRequest true "Export request"
// @Success 202 {object} response.Envelope
// @Router /providers/{providerID}/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export payload"))
		return
	}

	job, err := h.service.Enqueue(c.Request.Context(), c.Param("providerID"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param providerID path string true "Provider ID"
// @Param jobID path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /providers/{providerID}/exports/{jobID} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	job, err := h.service.Job(c.Param("jobID"), c.Param("providerID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil)
}

// Download streams a finished export given a valid signed token. The token is
// the only credential; the link is shareable until it expires.
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, relPath, err := h.service.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(relPath)
	contentType := "text/csv"
	if filepath.Ext(filename) == ".pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
