package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/workflow"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

func InitRouter(db *gorm.DB, settings *config.ScanSettings) *gin.Engine {
	router := gin.Default()

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	phases, err := workflow.LoadPhases("")
	if err != nil {
		logger.NewLogger(logrus.InfoLevel).WithError(err).Warn("Workflow config invalid, using default phase catalog")
		phases = workflow.DefaultPhases()
	}

	api := router.Group("/api")
	{
		InitScanRoutes(api, db, settings, phases)
		InitConfigRoutes(api, settings, phases)
	}

	return router
}
