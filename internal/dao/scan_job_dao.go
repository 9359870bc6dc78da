package dao

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
)

// ScanJobDAO persists scan jobs and owns every status transition. All reads
// are scoped by organization to enforce tenant isolation.
type ScanJobDAO interface {
	Create(job *models.ScanJob) error
	FindByID(id, orgID string) (*models.ScanJob, error)
	FindByTargetAndStatus(targetID string, statuses []models.JobStatus) ([]models.ScanJob, error)
	ListByOrganization(orgID string, page, limit int) ([]models.ScanJob, int64, error)
	UpdateProgress(id string, percentage int, status ...models.JobStatus) error
	MarkAsStarted(id string) error
	MarkAsCompleted(id string, results models.JSON) error
	MarkAsFailed(id, message string) error
	MarkAsCancelled(id string) error
	Count(orgID string, filters map[string]interface{}) (int64, error)
}

type scanJobDAO struct {
	db *gorm.DB
}

func NewScanJobDAO(db *gorm.DB) ScanJobDAO {
	return &scanJobDAO{db: db}
}

var nonTerminalStatuses = []models.JobStatus{models.StatusPending, models.StatusRunning}

func (dao *scanJobDAO) Create(job *models.ScanJob) error {
	if job.TargetID == "" {
		return apperrors.NewValidationError("target_id", job.TargetID, "target_id is required")
	}
	if job.OrganizationID == "" {
		return apperrors.NewValidationError("organization_id", job.OrganizationID, "organization_id is required")
	}
	if job.CreatedBy == "" {
		return apperrors.NewValidationError("created_by", job.CreatedBy, "created_by is required")
	}
	if !job.JobType.IsValid() {
		return apperrors.NewValidationError("job_type", job.JobType, "unknown job type")
	}

	// Business invariant: at most one pending/running job per target for
	// conflicting job types. Enforced here, not as a DB constraint.
	if job.JobType.Conflicting() {
		existing, err := dao.FindByTargetAndStatus(job.TargetID, nonTerminalStatuses)
		if err != nil {
			return err
		}
		var conflicting []string
		for _, e := range existing {
			if e.JobType == job.JobType {
				conflicting = append(conflicting, e.ID)
			}
		}
		if len(conflicting) > 0 {
			return apperrors.NewConflictError(string(job.JobType), job.TargetID, conflicting)
		}
	}

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = models.StatusPending
	job.ProgressPercentage = 0
	if job.Priority == "" {
		job.Priority = models.PriorityMedium
	}

	return dao.db.Create(job).Error
}

func (dao *scanJobDAO) FindByID(id, orgID string) (*models.ScanJob, error) {
	var job models.ScanJob
	err := dao.db.Where("id = ? AND organization_id = ?", id, orgID).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
		}
		return nil, err
	}
	return &job, nil
}

func (dao *scanJobDAO) FindByTargetAndStatus(targetID string, statuses []models.JobStatus) ([]models.ScanJob, error) {
	var jobs []models.ScanJob
	err := dao.db.Where("target_id = ? AND status IN ?", targetID, statuses).
		Order("created_at desc").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (dao *scanJobDAO) ListByOrganization(orgID string, page, limit int) ([]models.ScanJob, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	var total int64
	if err := dao.db.Model(&models.ScanJob{}).Where("organization_id = ?", orgID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.ScanJob
	err := dao.db.Where("organization_id = ?", orgID).
		Order("created_at desc").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

// MarkAsStarted transitions pending -> running. Starting a job in any other
// state is a caller bug and is reported, not absorbed.
func (dao *scanJobDAO) MarkAsStarted(id string) error {
	now := time.Now().UTC()
	res := dao.db.Model(&models.ScanJob{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusRunning,
			"started_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dao.transitionError(id, models.StatusRunning)
	}
	return nil
}

// UpdateProgress sets the progress percentage at coarse milestones. Progress
// is clamped monotonic while the job is running; updates against terminal
// jobs are no-ops so a late progress ping cannot resurrect a cancelled or
// completed job. A bare 100 with no explicit status implies completion (the
// explicit MarkAsCompleted with results still takes precedence when both run).
func (dao *scanJobDAO) UpdateProgress(id string, percentage int, status ...models.JobStatus) error {
	var job models.ScanJob
	if err := dao.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
		}
		return err
	}

	if job.Status.Terminal() {
		return nil
	}

	if percentage < job.ProgressPercentage {
		percentage = job.ProgressPercentage
	}
	if percentage > 100 {
		percentage = 100
	}

	updates := map[string]interface{}{"progress_percentage": percentage}
	if len(status) > 0 {
		updates["status"] = status[0]
	} else if percentage == 100 {
		updates["status"] = models.StatusCompleted
		updates["completed_at"] = time.Now().UTC()
	}

	return dao.db.Model(&models.ScanJob{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(updates).Error
}

// MarkAsCompleted is the authoritative completion transition: it carries the
// results payload. Idempotent when the job is already completed; a cancelled
// or failed job is never overwritten by a late completion.
func (dao *scanJobDAO) MarkAsCompleted(id string, results models.JSON) error {
	now := time.Now().UTC()
	res := dao.db.Model(&models.ScanJob{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(map[string]interface{}{
			"status":              models.StatusCompleted,
			"progress_percentage": 100,
			"results":             results,
			"completed_at":        now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var job models.ScanJob
		if err := dao.db.Where("id = ?", id).First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
			}
			return err
		}
		if job.Status == models.StatusCompleted {
			return nil
		}
		return apperrors.NewInvalidStateTransitionError(id, string(job.Status), string(models.StatusCompleted))
	}
	return nil
}

// MarkAsFailed is valid from any non-terminal state so an interruption at any
// point is recordable.
func (dao *scanJobDAO) MarkAsFailed(id, message string) error {
	now := time.Now().UTC()
	res := dao.db.Model(&models.ScanJob{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": message,
			"completed_at":  now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dao.transitionError(id, models.StatusFailed)
	}
	return nil
}

// MarkAsCancelled is caller-initiated only, from pending or running.
func (dao *scanJobDAO) MarkAsCancelled(id string) error {
	now := time.Now().UTC()
	res := dao.db.Model(&models.ScanJob{}).
		Where("id = ? AND status IN ?", id, nonTerminalStatuses).
		Updates(map[string]interface{}{
			"status":       models.StatusCancelled,
			"completed_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dao.transitionError(id, models.StatusCancelled)
	}
	return nil
}

func (dao *scanJobDAO) Count(orgID string, filters map[string]interface{}) (int64, error) {
	query := dao.db.Model(&models.ScanJob{}).Where("organization_id = ?", orgID)
	for field, value := range filters {
		query = query.Where(field+" = ?", value)
	}
	var total int64
	err := query.Count(&total).Error
	return total, err
}

// transitionError builds the error for a guarded update that matched no rows:
// either the job is missing or it is already terminal.
func (dao *scanJobDAO) transitionError(id string, to models.JobStatus) error {
	var job models.ScanJob
	if err := dao.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
		}
		return err
	}
	return apperrors.NewInvalidStateTransitionError(id, string(job.Status), string(to))
}
