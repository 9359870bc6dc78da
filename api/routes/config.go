package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/handlers"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/workflow"
)

func InitConfigRoutes(router *gin.RouterGroup, settings *config.ScanSettings, phases []workflow.Phase) {
	handler := handlers.NewConfigHandler(settings, phases)

	configRoutes := router.Group("/config")
	{
		configRoutes.GET("/settings", handler.GetScanSettings)
		configRoutes.GET("/workflow", handler.GetWorkflowPhases)
	}
}
