package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/services"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

type ScanHandler struct {
	scanService services.ScanService
	logger      *logger.Logger
}

func NewScanHandler(scanService services.ScanService) *ScanHandler {
	return &ScanHandler{
		scanService: scanService,
		logger:      logger.NewLogger(logrus.InfoLevel),
	}
}

// StartScans creates one job per requested type and dispatches them in the
// background. The response carries the pending jobs; clients poll for
// progress.
func (h *ScanHandler) StartScans(c *gin.Context) {
	orgID, createdBy, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	jobTypes := make([]models.JobType, 0, len(req.JobTypes))
	for _, raw := range req.JobTypes {
		jobTypes = append(jobTypes, models.JobType(raw))
	}

	jobs, err := h.scanService.CreateScanJobs(req.TargetID, orgID, createdBy, jobTypes, req.ScanTypes, models.Priority(req.Priority), req.Config)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.WithFields(logger.Fields{"target_id": req.TargetID, "jobs": len(jobs)}).Info("Dispatching scan jobs")
	go h.scanService.StartScanJobs(context.Background(), jobs)

	c.JSON(http.StatusAccepted, ScanJobResponse{Jobs: jobs})
}

// StartComprehensive creates and dispatches one comprehensive assessment job
func (h *ScanHandler) StartComprehensive(c *gin.Context) {
	orgID, createdBy, ok := h.callerScope(c)
	if !ok {
		return
	}

	var req ComprehensiveScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload: " + err.Error()})
		return
	}

	jobs, err := h.scanService.CreateScanJobs(
		req.TargetID, orgID, createdBy,
		[]models.JobType{models.JobTypeComprehensiveBugBounty},
		nil, models.Priority(req.Priority), req.Config,
	)
	if err != nil {
		h.respondError(c, err)
		return
	}

	go h.scanService.StartScanJobs(context.Background(), jobs)
	c.JSON(http.StatusAccepted, ScanJobResponse{Jobs: jobs})
}

func (h *ScanHandler) GetScan(c *gin.Context) {
	orgID, _, ok := h.callerScope(c)
	if !ok {
		return
	}

	job, err := h.scanService.GetScanJob(c.Param("id"), orgID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *ScanHandler) ListScans(c *gin.Context) {
	orgID, _, ok := h.callerScope(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	jobs, total, err := h.scanService.ListScanJobs(orgID, page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScanListResponse{Jobs: jobs, Total: total, Page: page, Limit: limit})
}

// StopScan cancels a pending or running job
func (h *ScanHandler) StopScan(c *gin.Context) {
	orgID, _, ok := h.callerScope(c)
	if !ok {
		return
	}

	if err := h.scanService.StopScanJob(c.Param("id"), orgID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.StatusCancelled)})
}

func (h *ScanHandler) QueueStatus(c *gin.Context) {
	running, queued, maxConcurrent := h.scanService.QueueStatus()
	c.JSON(http.StatusOK, QueueStatusResponse{
		Running:       running,
		Queued:        queued,
		MaxConcurrent: maxConcurrent,
		ActiveJobs:    h.scanService.ActiveJobs(),
	})
}

// callerScope pulls tenant identity off the request. Authentication proper
// lives in front of this service; these headers are its hand-off.
func (h *ScanHandler) callerScope(c *gin.Context) (orgID, userID string, ok bool) {
	orgID = c.GetHeader("X-Organization-ID")
	userID = c.GetHeader("X-User-ID")
	if orgID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Organization-ID header is required"})
		return "", "", false
	}
	if userID == "" {
		userID = "system"
	}
	return orgID, userID, true
}

// respondError maps the error taxonomy onto HTTP status codes
func (h *ScanHandler) respondError(c *gin.Context, err error) {
	var conflictErr *apperrors.ConflictError
	var transitionErr *apperrors.InvalidStateTransitionError

	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":           err.Error(),
			"conflicting_ids": conflictErr.ConflictingIDs,
		})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
