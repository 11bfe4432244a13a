package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/service"
	"github.com/noah-isme/campaign-contacts-api/pkg/response"
)

type archiveService interface {
	List(ctx context.Context, filter models.ArchiveFilter) ([]models.RecipientArchive, error)
	Restore(ctx context.Context, archiveID string, actor models.Actor) (*models.Recipient, error)
	Export(ctx context.Context, filter models.ArchiveFilter, format string) (*service.ArchiveExport, error)
}

// ArchiveHandler exposes archived recipients.
type ArchiveHandler struct {
	service archiveService
}

// NewArchiveHandler constructs the handler.
func NewArchiveHandler(service archiveService) *ArchiveHandler {
	return &ArchiveHandler{service: service}
}

func archiveFilterFromQuery(c *gin.Context) models.ArchiveFilter {
	return models.ArchiveFilter{
		CampaignID:      strings.TrimSpace(c.Query("campaignId")),
		Email:           strings.TrimSpace(c.Query("email")),
		IncludeRestored: queryBool(c, "includeRestored"),
		Limit:           queryInt(c, "limit", 0),
		Offset:          queryInt(c, "offset", 0),
	}
}

// List godoc
// @Summary List archived recipients
// @Tags Archives
// @Produce json
// @Param campaignId query string false "Campaign filter"
// @Param email query string false "Exact email"
// @Param includeRestored query bool false "Include restored records"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /archives [get]
func (h *ArchiveHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context(), archiveFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Export godoc
// @Summary Export archived recipients
// @Tags Archives
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param campaignId query string false "Campaign filter"
// @Success 200 {file} file
// @Router /archives/export [get]
func (h *ArchiveHandler) Export(c *gin.Context) {
	out, err := h.service.Export(c.Request.Context(), archiveFilterFromQuery(c), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Content)
}

// Restore godoc
// @Summary Restore an archived recipient
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /archives/{id}/restore [post]
func (h *ArchiveHandler) Restore(c *gin.Context) {
	recipient, err := h.service.Restore(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}
