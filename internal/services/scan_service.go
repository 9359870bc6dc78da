package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/dao"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/notification"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/runner"
)

// WorkflowRunner executes the comprehensive multi-phase assessment. Declared
// here so the service depends on the behavior, not the workflow package.
type WorkflowRunner interface {
	Execute(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error)
}

// JobOutcome is the settled result of one dispatched job. Every started job
// produces exactly one outcome, success or not.
type JobOutcome struct {
	JobID   string
	JobType models.JobType
	Status  models.JobStatus
	Err     error
}

type ScanService interface {
	CreateScanJobs(targetID, orgID, createdBy string, jobTypes []models.JobType, scanTypes []string, priority models.Priority, cfg models.JSON) ([]*models.ScanJob, error)
	StartScanJobs(ctx context.Context, jobs []*models.ScanJob) []JobOutcome
	StopScanJob(id, orgID string) error
	GetScanJob(id, orgID string) (*models.ScanJob, error)
	ListScanJobs(orgID string, page, limit int) ([]models.ScanJob, int64, error)
	CountScanJobs(orgID string, filters map[string]interface{}) (int64, error)
	QueueStatus() (running, queued, maxConcurrent int)
	ActiveJobs() []string
}

type scanService struct {
	jobs      dao.ScanJobDAO
	targets   dao.TargetDAO
	stores    scanners.Stores
	executors *scanners.Registry
	workflow  WorkflowRunner
	registry  *ActiveScanRegistry
	queue     *ScanQueue
	settings  *config.ScanSettings
	runner    runner.CommandRunner
	client    *http.Client
	notifier  *notification.Client
	monitor   *DiscoveryMonitor
	logger    *logger.Logger
}

type ScanServiceDeps struct {
	Jobs      dao.ScanJobDAO
	Targets   dao.TargetDAO
	Stores    scanners.Stores
	Executors *scanners.Registry
	Workflow  WorkflowRunner
	Registry  *ActiveScanRegistry
	Queue     *ScanQueue
	Settings  *config.ScanSettings
	Runner    runner.CommandRunner
	Client    *http.Client
	Notifier  *notification.Client
	Monitor   *DiscoveryMonitor
}

func NewScanService(deps ScanServiceDeps) ScanService {
	if deps.Registry == nil {
		deps.Registry = NewActiveScanRegistry()
	}
	if deps.Queue == nil {
		deps.Queue = NewScanQueue(3)
	}
	if deps.Runner == nil {
		deps.Runner = runner.NewSimpleRunner()
	}
	if deps.Client == nil {
		deps.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &scanService{
		jobs:      deps.Jobs,
		targets:   deps.Targets,
		stores:    deps.Stores,
		executors: deps.Executors,
		workflow:  deps.Workflow,
		registry:  deps.Registry,
		queue:     deps.Queue,
		settings:  deps.Settings,
		runner:    deps.Runner,
		client:    deps.Client,
		notifier:  deps.Notifier,
		monitor:   deps.Monitor,
		logger:    logger.NewLogger(logrus.InfoLevel),
	}
}

// CreateScanJobs validates and persists one job per requested type. Validation
// and the per-target conflict check live in the DAO; a conflict aborts the
// batch and returns the jobs created before it.
func (s *scanService) CreateScanJobs(targetID, orgID, createdBy string, jobTypes []models.JobType, scanTypes []string, priority models.Priority, cfg models.JSON) ([]*models.ScanJob, error) {
	if _, err := s.targets.FindByID(targetID, orgID); err != nil {
		return nil, err
	}

	jobs := make([]*models.ScanJob, 0, len(jobTypes))
	for _, jobType := range jobTypes {
		job := &models.ScanJob{
			TargetID:       targetID,
			OrganizationID: orgID,
			CreatedBy:      createdBy,
			JobType:        jobType,
			ScanTypes:      scanTypes,
			Priority:       priority,
			Config:         cfg,
		}
		if err := s.jobs.Create(job); err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// StartScanJobs dispatches every job concurrently and blocks until all of them
// settle. One job failing never prevents the others from finishing; the
// returned slice holds one outcome per input job, in order.
func (s *scanService) StartScanJobs(ctx context.Context, jobs []*models.ScanJob) []JobOutcome {
	outcomes := make([]JobOutcome, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job *models.ScanJob) {
			defer wg.Done()
			outcomes[i] = s.runJob(ctx, job)
		}(i, job)
	}
	wg.Wait()

	return outcomes
}

func (s *scanService) runJob(ctx context.Context, job *models.ScanJob) (outcome JobOutcome) {
	outcome = JobOutcome{JobID: job.ID, JobType: job.JobType, Status: models.StatusFailed}
	log := s.logger.WithJob(job.ID, string(job.JobType))

	defer func() {
		if r := recover(); r != nil {
			message := fmt.Sprintf("scan panicked: %v", r)
			log.Error(message)
			_ = s.jobs.MarkAsFailed(job.ID, message)
			outcome.Status = models.StatusFailed
			outcome.Err = errors.New(message)
		}
	}()

	target, err := s.targets.FindByID(job.TargetID, job.OrganizationID)
	if err != nil {
		_ = s.jobs.MarkAsFailed(job.ID, err.Error())
		outcome.Err = err
		return outcome
	}

	_ = s.queue.ExecuteWithQueue(func() error {
		outcome = s.executeJob(ctx, job, target, log)
		return outcome.Err
	})
	return outcome
}

// executeJob runs one job inside its queue slot and settles its row exactly
// once: completed, failed, or cancelled.
func (s *scanService) executeJob(ctx context.Context, job *models.ScanJob, target *models.Target, log *logrus.Entry) JobOutcome {
	outcome := JobOutcome{JobID: job.ID, JobType: job.JobType}

	if err := s.jobs.MarkAsStarted(job.ID); err != nil {
		// Cancelled or otherwise moved on while waiting for a slot
		log.WithError(err).Warn("Job no longer pending, skipping execution")
		outcome.Status = statusFromTransitionError(err)
		outcome.Err = err
		return outcome
	}

	if dir := s.workDirFor(job); dir != "" {
		if jobLog, err := logger.NewJobLogger(job.ID, dir, logrus.InfoLevel); err != nil {
			log.WithError(err).Warn("Job log file unavailable, console only")
		} else {
			defer jobLog.Close()
			log = jobLog.WithJob(job.ID, string(job.JobType))
		}
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.registry.Register(job.ID, cancel)
	defer s.registry.Done(job.ID)

	started := time.Now()
	scan := s.newScanContext(job, target, log)

	monitorCtx, monitorCancel := context.WithCancel(jobCtx)
	monitorDone := s.startDiscoveryMonitor(monitorCtx, job, target)

	log.Info("Scan job started")
	result, runErr := s.dispatch(jobCtx, job, scan)
	monitorCancel()
	<-monitorDone

	if jobCtx.Err() != nil {
		// StopScanJob cancelled the row before firing the handle, so the late
		// result is discarded here. Shutdown cancellation lands here too.
		_ = s.jobs.MarkAsCancelled(job.ID)
		log.Info("Scan job cancelled, result discarded")
		outcome.Status = models.StatusCancelled
		return outcome
	}

	if runErr != nil {
		log.WithError(runErr).Error("Scan job failed")
		_ = s.jobs.MarkAsFailed(job.ID, runErr.Error())
		_ = s.notifier.ScanFailed(job.ID, string(job.JobType), target.Domain, runErr.Error())
		outcome.Status = models.StatusFailed
		outcome.Err = runErr
		return outcome
	}

	if err := s.jobs.MarkAsCompleted(job.ID, result); err != nil {
		// Lost the race against cancellation; terminal rows are never rewritten
		log.WithError(err).Warn("Completion discarded, job already terminal")
		outcome.Status = statusFromTransitionError(err)
		return outcome
	}

	s.recordTargetStats(job, target, result, log)

	duration := time.Since(started)
	log.WithFields(logrus.Fields(logger.Fields{"duration": duration.Round(time.Millisecond).String()})).Info("Scan job completed")
	_ = s.notifier.ScanCompleted(job.ID, string(job.JobType), target.Domain, duration)
	if critical := countCriticalFindings(result); critical > 0 {
		_ = s.notifier.CriticalFindings(target.Domain, critical, string(job.JobType))
	}

	outcome.Status = models.StatusCompleted
	return outcome
}

// startDiscoveryMonitor tails the enumeration discovery file for subdomain
// scans when a work directory is configured. Returns a closed channel when
// there is nothing to monitor so callers can always receive on it.
func (s *scanService) startDiscoveryMonitor(ctx context.Context, job *models.ScanJob, target *models.Target) <-chan struct{} {
	done := make(chan struct{})

	workDir := s.workDirFor(job)
	if s.monitor == nil || workDir == "" || job.JobType != models.JobTypeSubdomainScan {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		if err := s.monitor.Prime(target.ID); err != nil {
			s.logger.WithError(err).Warn("Discovery monitor prime failed")
		}
		s.monitor.Watch(ctx, target.ID, target.Domain, workDir, job.ID)
	}()
	return done
}

// workDirFor resolves the job's working directory: per-job config overrides
// the service-wide setting. Empty means no filesystem artifacts.
func (s *scanService) workDirFor(job *models.ScanJob) string {
	dir := ""
	if s.settings != nil {
		dir = s.settings.WorkDir
	}
	if v, ok := job.Config["work_dir"].(string); ok && v != "" {
		dir = v
	}
	return dir
}

func (s *scanService) dispatch(ctx context.Context, job *models.ScanJob, scan *scanners.ScanContext) (models.JSON, error) {
	if job.JobType == models.JobTypeComprehensiveBugBounty {
		if s.workflow == nil {
			return nil, apperrors.NewExecutionError(string(job.JobType), apperrors.ErrExecutorNotFound)
		}
		return s.workflow.Execute(ctx, scan)
	}

	executor, ok := s.executors.Get(job.JobType)
	if !ok {
		return nil, apperrors.NewExecutionError(string(job.JobType), apperrors.ErrExecutorNotFound)
	}
	return executor.Run(ctx, scan)
}

func (s *scanService) newScanContext(job *models.ScanJob, target *models.Target, log *logrus.Entry) *scanners.ScanContext {
	return &scanners.ScanContext{
		Job:      job,
		Target:   target,
		Settings: s.settings,
		Stores:   s.stores,
		Runner:   s.runner,
		Client:   s.client,
		Logger:   s.logger,
		Progress: func(percentage int) {
			if err := s.jobs.UpdateProgress(job.ID, percentage); err != nil {
				log.WithError(err).Debug("Progress update dropped")
			}
		},
	}
}

func (s *scanService) recordTargetStats(job *models.ScanJob, target *models.Target, result models.JSON, log *logrus.Entry) {
	if stats := extractTargetStats(job.JobType, result); len(stats) > 0 {
		if err := s.targets.MergeStats(target.ID, job.OrganizationID, stats); err != nil {
			log.WithError(err).Warn("Target stats update failed")
		}
	}
	if err := s.targets.TouchLastScan(target.ID, job.OrganizationID); err != nil {
		log.WithError(err).Warn("Target last_scan_at update failed")
	}
}

// StopScanJob cancels a pending or running job. The row transitions first so a
// racing completion finds it terminal; the execution handle is fired after,
// best effort.
func (s *scanService) StopScanJob(id, orgID string) error {
	if _, err := s.jobs.FindByID(id, orgID); err != nil {
		return err
	}
	if err := s.jobs.MarkAsCancelled(id); err != nil {
		return err
	}
	if !s.registry.Cancel(id) {
		s.logger.WithFields(logger.Fields{"job_id": id}).Info("No in-flight execution to interrupt, row cancelled")
	}
	return nil
}

func (s *scanService) GetScanJob(id, orgID string) (*models.ScanJob, error) {
	return s.jobs.FindByID(id, orgID)
}

func (s *scanService) ListScanJobs(orgID string, page, limit int) ([]models.ScanJob, int64, error) {
	return s.jobs.ListByOrganization(orgID, page, limit)
}

func (s *scanService) CountScanJobs(orgID string, filters map[string]interface{}) (int64, error) {
	return s.jobs.Count(orgID, filters)
}

func (s *scanService) QueueStatus() (running, queued, maxConcurrent int) {
	return s.queue.Status()
}

func (s *scanService) ActiveJobs() []string {
	return s.registry.Active()
}

// statusFromTransitionError reports the state a guarded update actually found
func statusFromTransitionError(err error) models.JobStatus {
	var transitionErr *apperrors.InvalidStateTransitionError
	if errors.As(err, &transitionErr) {
		return models.JobStatus(transitionErr.From)
	}
	return models.StatusFailed
}
