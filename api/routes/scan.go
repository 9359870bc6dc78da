package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/dao"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/handlers"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/notification"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/services"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/workflow"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

func InitScanRoutes(router *gin.RouterGroup, db *gorm.DB, settings *config.ScanSettings, phases []workflow.Phase) {
	log := logger.NewLogger(logrus.InfoLevel)

	stores := scanners.Stores{
		Subdomains:      dao.NewSubdomainDAO(db),
		Ports:           dao.NewPortDAO(db),
		Directories:     dao.NewDirectoryDAO(db),
		Vulnerabilities: dao.NewVulnerabilityDAO(db),
	}
	registry := scanners.DefaultRegistry()

	notifier, err := notification.NewClient()
	if err != nil {
		log.WithError(err).Warn("Discord notifications disabled")
	}

	scanService := services.NewScanService(services.ScanServiceDeps{
		Jobs:      dao.NewScanJobDAO(db),
		Targets:   dao.NewTargetDAO(db),
		Stores:    stores,
		Executors: registry,
		Workflow:  workflow.NewOrchestrator(phases, registry),
		Settings:  settings,
		Notifier:  notifier,
		Monitor:   services.NewDiscoveryMonitor(stores.Subdomains, notifier),
	})

	h := handlers.NewScanHandler(scanService)

	scans := router.Group("/scans")
	{
		scans.POST("", h.StartScans)
		scans.POST("/comprehensive", h.StartComprehensive)
		scans.GET("", h.ListScans)
		scans.GET("/queue", h.QueueStatus)
		scans.GET("/:id", h.GetScan)
		scans.DELETE("/:id", h.StopScan)
	}
}
