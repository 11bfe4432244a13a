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

type campaignService interface {
	List(ctx context.Context, filter models.CampaignFilter) ([]models.Campaign, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Campaign, error)
	Create(ctx context.Context, req service.CreateCampaignRequest, actor models.Actor) (*models.Campaign, error)
	UpdateContent(ctx context.Context, id string, req service.UpdateCampaignRequest, actor models.Actor) (*models.Campaign, error)
	Transition(ctx context.Context, id string, to models.CampaignStatus, actor models.Actor) (*models.Campaign, error)
	Stats(ctx context.Context, id string) (*models.CampaignStats, error)
}

type campaignReconciler interface {
	Reconcile(ctx context.Context, campaignID string) (*models.ReconcileResult, error)
	ReconcileAll(ctx context.Context) (*models.ReconcileReport, error)
}

// CampaignHandler manages campaign endpoints.
type CampaignHandler struct {
	service    campaignService
	reconciler campaignReconciler
}

// NewCampaignHandler constructs the handler.
func NewCampaignHandler(service campaignService, reconciler campaignReconciler) *CampaignHandler {
	return &CampaignHandler{service: service, reconciler: reconciler}
}

// List godoc
// @Summary List campaigns
// @Tags Campaigns
// @Produce json
// @Param status query string false "Lifecycle status"
// @Param search query string false "Name or subject contains"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /campaigns [get]
func (h *CampaignHandler) List(c *gin.Context) {
	filter := models.CampaignFilter{
		Status:   models.CampaignStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get campaign
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /campaigns/{id} [get]
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Stats godoc
// @Summary Campaign recipient statistics
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/stats [get]
func (h *CampaignHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Create godoc
// @Summary Create a draft campaign
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param payload body service.CreateCampaignRequest true "Campaign payload"
// @Success 201 {object} response.Envelope
// @Router /campaigns [post]
func (h *CampaignHandler) Create(c *gin.Context) {
	var req service.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.Create(c.Request.Context(), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, campaign)
}

// Update godoc
// @Summary Edit draft campaign content
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body service.UpdateCampaignRequest true "Campaign payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns/{id} [put]
func (h *CampaignHandler) Update(c *gin.Context) {
	var req service.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid campaign payload"))
		return
	}
	campaign, err := h.service.UpdateContent(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Transition godoc
// @Summary Move a campaign to another lifecycle status
// @Tags Campaigns
// @Accept json
// @Produce json
// @Param id path string true "Campaign ID"
// @Param payload body service.TransitionCampaignRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /campaigns/{id}/transition [post]
func (h *CampaignHandler) Transition(c *gin.Context) {
	var req service.TransitionCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status is required"))
		return
	}
	to := models.CampaignStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	campaign, err := h.service.Transition(c.Request.Context(), c.Param("id"), to, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, campaign, nil)
}

// Reconcile godoc
// @Summary Recount a campaign's recipients
// @Tags Campaigns
// @Produce json
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.Envelope
// @Router /campaigns/{id}/reconcile [post]
func (h *CampaignHandler) Reconcile(c *gin.Context) {
	result, err := h.reconciler.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReconcileAll godoc
// @Summary Recount every campaign
// @Tags Campaigns
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /campaigns/reconcile [post]
func (h *CampaignHandler) ReconcileAll(c *gin.Context) {
	report, err := h.reconciler.ReconcileAll(c.Request.Context())
	if err != nil && report == nil {
		response.Error(c, err)
		return
	}
	response.Partial(c, report, err)
}
