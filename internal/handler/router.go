package handler

import (
	"github.com/gin-gonic/gin"
)

// Router groups the API handlers mounted under the versioned prefix.
type Router struct {
	Imports    *ImportHandler
	Recipients *RecipientHandler
	Campaigns  *CampaignHandler
	Archives   *ArchiveHandler
}

// Register mounts every API route on group. Authentication middleware is
// expected to be installed on group by the caller.
func (r *Router) Register(group *gin.RouterGroup) {
	imports := group.Group("/imports")
	imports.POST("", r.Imports.Upload)
	imports.GET("/template", r.Imports.Template)

	recipients := group.Group("/recipients")
	recipients.GET("", r.Recipients.List)
	recipients.POST("", r.Recipients.Create)
	recipients.DELETE("", r.Recipients.DeleteAll)
	recipients.GET("/:id", r.Recipients.Get)
	recipients.PUT("/:id", r.Recipients.Update)
	recipients.DELETE("/:id", r.Recipients.Delete)

	campaigns := group.Group("/campaigns")
	campaigns.GET("", r.Campaigns.List)
	campaigns.POST("", r.Campaigns.Create)
	campaigns.POST("/reconcile", r.Campaigns.ReconcileAll)
	campaigns.GET("/:id", r.Campaigns.Get)
	campaigns.PUT("/:id", r.Campaigns.Update)
	campaigns.GET("/:id/stats", r.Campaigns.Stats)
	campaigns.POST("/:id/transition", r.Campaigns.Transition)
	campaigns.POST("/:id/reconcile", r.Campaigns.Reconcile)

	archives := group.Group("/archives")
	archives.GET("", r.Archives.List)
	archives.GET("/export", r.Archives.Export)
	archives.POST("/:id/restore", r.Archives.Restore)
}
