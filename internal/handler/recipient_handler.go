package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campaign-contacts-api/internal/models"
	"github.com/noah-isme/campaign-contacts-api/internal/service"
	appErrors "github.com/noah-isme/campaign-contacts-api/pkg/errors"
	"github.com/noah-isme/campaign-contacts-api/pkg/response"
)

type recipientService interface {
	List(ctx context.Context, filter models.RecipientFilter) ([]models.Recipient, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Recipient, error)
	Create(ctx context.Context, req service.CreateRecipientRequest, actor models.Actor) (*models.Recipient, error)
	Update(ctx context.Context, id string, req service.UpdateRecipientRequest, actor models.Actor) (*models.Recipient, error)
}

type recipientDeleter interface {
	DeleteRecipient(ctx context.Context, recipientID string, actor models.Actor) (*models.DeleteResult, error)
	DeleteAllRecipients(ctx context.Context, filter models.RecipientFilter, actor models.Actor) (*models.BulkDeleteResult, error)
}

// RecipientHandler manages recipient endpoints.
type RecipientHandler struct {
	service recipientService
	deleter recipientDeleter
}

// NewRecipientHandler constructs the handler.
func NewRecipientHandler(service recipientService, deleter recipientDeleter) *RecipientHandler {
	return &RecipientHandler{service: service, deleter: deleter}
}

func recipientFilterFromQuery(c *gin.Context) models.RecipientFilter {
	return models.RecipientFilter{
		CampaignID: strings.TrimSpace(c.Query("campaignId")),
		Unassigned: queryBool(c, "unassigned"),
		All:        queryBool(c, "all"),
		Search:     strings.TrimSpace(c.Query("search")),
		Status:     strings.TrimSpace(c.Query("status")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 50),
		SortBy:     c.Query("sortBy"),
		SortOrder:  c.Query("sortOrder"),
	}
}

// List godoc
// @Summary List recipients
// @Tags Recipients
// @Produce json
// @Param campaignId query string false "Campaign filter"
// @Param unassigned query bool false "Only recipients without a campaign"
// @Param search query string false "Email, name or company contains"
// @Param status query string false "Recipient status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sortBy query string false "email, name, company, created_at, updated_at"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /recipients [get]
func (h *RecipientHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), recipientFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get recipient
// @Tags Recipients
// @Produce json
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /recipients/{id} [get]
func (h *RecipientHandler) Get(c *gin.Context) {
	recipient, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}

// Create godoc
// @Summary Add a recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param payload body service.CreateRecipientRequest true "Recipient payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /recipients [post]
func (h *RecipientHandler) Create(c *gin.Context) {
	var req service.CreateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid recipient payload"))
		return
	}
	recipient, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, recipient)
}

// Update godoc
// @Summary Edit a recipient
// @Tags Recipients
// @Accept json
// @Produce json
// @Param id path string true "Recipient ID"
// @Param payload body service.UpdateRecipientRequest true "Recipient payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /recipients/{id} [put]
func (h *RecipientHandler) Update(c *gin.Context) {
	var req service.UpdateRecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid recipient payload"))
		return
	}
	recipient, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, recipient, nil)
}

// Delete godoc
// @Summary Archive and delete a recipient
// @Tags Recipients
// @Produce json
// @Param id path string true "Recipient ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /recipients/{id} [delete]
func (h *RecipientHandler) Delete(c *gin.Context) {
	result, err := h.deleter.DeleteRecipient(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeleteAll godoc
// @Summary Archive and delete every matching recipient
// @Description Requires campaignId, unassigned, search or status, or all=true.
// @Tags Recipients
// @Produce json
// @Param campaignId query string false "Campaign filter"
// @Param unassigned query bool false "Only recipients without a campaign"
// @Param all query bool false "Delete every recipient"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /recipients [delete]
func (h *RecipientHandler) DeleteAll(c *gin.Context) {
	filter := recipientFilterFromQuery(c)
	result, err := h.deleter.DeleteAllRecipients(c.Request.Context(), filter, actorFromContext(c))
	if err != nil && result == nil {
		response.Error(c, err)
		return
	}
	response.Partial(c, result, err)
}
