package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/service"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/response"
	"github.com/noah-isme/campaign-contacts-api/pkg/spreadsheet"
)

type importService interface {
	ImportUpload(ctx context.Context, r io.Reader, filename string, opts service.ImportOptions) (*models.ImportBatch, error)
	Template() ([]byte, error)
}

// ImportHandler exposes contact upload endpoints.
type ImportHandler struct {
	service importService
	maxSize int64
}

// NewImportHandler constructs the handler. maxSize caps the multipart file.
func NewImportHandler(service importService, maxSize int64) *ImportHandler {
	return &ImportHandler{service: service, maxSize: maxSize}
}

// Upload godoc
// @Summary Import recipients from a spreadsheet
// @Description Accepts CSV/TSV/semicolon delimited text or XLSX. Returns one outcome per data row.
// @Tags Imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Contact file"
// @Param campaignId formData string false "Target draft campaign"
// @Param format formData string false "csv or xlsx; sniffed when omitted"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /imports [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	if h.maxSize > 0 {
		// Multipart framing adds a little on top of the file itself.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+1<<20)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if h.maxSize > 0 && fileHeader.Size > h.maxSize {
		response.Error(c, appErrors.New(appErrors.ErrValidation.Code, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxSize)))
		return
	}
	format, err := spreadsheet.ParseFormat(c.PostForm("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error()))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	opts := service.ImportOptions{
		CampaignID: optionalID(c.PostForm("campaignId")),
		Actor:      actorFromContext(c),
		Format:     format,
	}
	batch, err := h.service.ImportUpload(c.Request.Context(), src, fileHeader.Filename, opts)
	if err != nil && batch == nil {
		response.Error(c, err)
		return
	}
	response.Partial(c, batch, err)
}

// Template godoc
// @Summary Download the import template
// @Tags Imports
// @Produce text/csv
// @Success 200 {file} file
// @Router /imports/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	content, err := h.service.Template()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, "recipient-import-template.csv", "text/csv", content)
}
