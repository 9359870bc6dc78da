package handlers

import "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"

type CreateScanRequest struct {
	TargetID  string                 `json:"target_id" binding:"required"`
	JobTypes  []string               `json:"job_types" binding:"required,min=1"`
	ScanTypes []string               `json:"scan_types"`
	Priority  string                 `json:"priority"`
	Config    map[string]interface{} `json:"config"`
}

type ComprehensiveScanRequest struct {
	TargetID string                 `json:"target_id" binding:"required"`
	Priority string                 `json:"priority"`
	Config   map[string]interface{} `json:"config"`
}

type ScanJobResponse struct {
	Jobs []*models.ScanJob `json:"jobs"`
}

type ScanListResponse struct {
	Jobs  []models.ScanJob `json:"jobs"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type QueueStatusResponse struct {
	Running       int      `json:"running"`
	Queued        int      `json:"queued"`
	MaxConcurrent int      `json:"max_concurrent"`
	ActiveJobs    []string `json:"active_jobs"`
}
