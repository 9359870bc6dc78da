package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
)

// fakeScanJobDAO mirrors the real DAO's guarded transitions in memory:
// terminal rows are never rewritten, MarkAsStarted requires pending, and a
// lost guard reports the state actually found.
type fakeScanJobDAO struct {
	mu   sync.Mutex
	jobs map[string]*models.ScanJob
	seq  int
}

func newFakeScanJobDAO() *fakeScanJobDAO {
	return &fakeScanJobDAO{jobs: map[string]*models.ScanJob{}}
}

func (d *fakeScanJobDAO) Create(job *models.ScanJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !job.JobType.IsValid() {
		return apperrors.NewValidationError("job_type", job.JobType, "unknown job type")
	}
	if job.JobType.Conflicting() {
		var conflicting []string
		for _, existing := range d.jobs {
			if existing.TargetID == job.TargetID && existing.JobType == job.JobType && !existing.Status.Terminal() {
				conflicting = append(conflicting, existing.ID)
			}
		}
		if len(conflicting) > 0 {
			return apperrors.NewConflictError(string(job.JobType), job.TargetID, conflicting)
		}
	}

	d.seq++
	if job.ID == "" {
		job.ID = string(rune('a'+d.seq-1)) + "-job"
	}
	job.Status = models.StatusPending
	stored := *job
	d.jobs[job.ID] = &stored
	return nil
}

func (d *fakeScanJobDAO) FindByID(id, orgID string) (*models.ScanJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok || job.OrganizationID != orgID {
		return nil, apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
	}
	copied := *job
	return &copied, nil
}

func (d *fakeScanJobDAO) FindByTargetAndStatus(targetID string, statuses []models.JobStatus) ([]models.ScanJob, error) {
	return nil, nil
}

func (d *fakeScanJobDAO) ListByOrganization(orgID string, page, limit int) ([]models.ScanJob, int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var jobs []models.ScanJob
	for _, job := range d.jobs {
		if job.OrganizationID == orgID {
			jobs = append(jobs, *job)
		}
	}
	return jobs, int64(len(jobs)), nil
}

func (d *fakeScanJobDAO) UpdateProgress(id string, percentage int, status ...models.JobStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok {
		return apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
	}
	if job.Status.Terminal() {
		return nil
	}
	if percentage > job.ProgressPercentage {
		job.ProgressPercentage = percentage
	}
	return nil
}

func (d *fakeScanJobDAO) MarkAsStarted(id string) error {
	return d.transition(id, models.StatusRunning, func(job *models.ScanJob) bool {
		return job.Status == models.StatusPending
	}, nil)
}

func (d *fakeScanJobDAO) MarkAsCompleted(id string, results models.JSON) error {
	d.mu.Lock()
	if job, ok := d.jobs[id]; ok && job.Status == models.StatusCompleted {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()
	return d.transition(id, models.StatusCompleted, func(job *models.ScanJob) bool {
		return !job.Status.Terminal()
	}, func(job *models.ScanJob) {
		job.Results = results
		job.ProgressPercentage = 100
	})
}

func (d *fakeScanJobDAO) MarkAsFailed(id, message string) error {
	return d.transition(id, models.StatusFailed, func(job *models.ScanJob) bool {
		return !job.Status.Terminal()
	}, func(job *models.ScanJob) {
		job.ErrorMessage = message
	})
}

func (d *fakeScanJobDAO) MarkAsCancelled(id string) error {
	return d.transition(id, models.StatusCancelled, func(job *models.ScanJob) bool {
		return !job.Status.Terminal()
	}, nil)
}

func (d *fakeScanJobDAO) Count(orgID string, filters map[string]interface{}) (int64, error) {
	_, total, err := d.ListByOrganization(orgID, 1, 100)
	return total, err
}

func (d *fakeScanJobDAO) transition(id string, to models.JobStatus, guard func(*models.ScanJob) bool, apply func(*models.ScanJob)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.jobs[id]
	if !ok {
		return apperrors.NewNotFoundError("scan job", id, apperrors.ErrJobNotFound)
	}
	if !guard(job) {
		return apperrors.NewInvalidStateTransitionError(id, string(job.Status), string(to))
	}
	job.Status = to
	if apply != nil {
		apply(job)
	}
	return nil
}

func (d *fakeScanJobDAO) status(id string) models.JobStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.jobs[id].Status
}

type fakeTargetDAO struct {
	mu          sync.Mutex
	targets     map[string]*models.Target
	mergedStats []models.JSON
	touched     int
}

func newFakeTargetDAO(targets ...*models.Target) *fakeTargetDAO {
	d := &fakeTargetDAO{targets: map[string]*models.Target{}}
	for _, target := range targets {
		d.targets[target.ID] = target
	}
	return d
}

func (d *fakeTargetDAO) FindByID(id, orgID string) (*models.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	target, ok := d.targets[id]
	if !ok || target.OrganizationID != orgID {
		return nil, apperrors.NewNotFoundError("target", id, apperrors.ErrTargetNotFound)
	}
	return target, nil
}

func (d *fakeTargetDAO) FindOrCreateByDomain(domain, orgID string) (*models.Target, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, target := range d.targets {
		if target.Domain == domain && target.OrganizationID == orgID {
			return target, nil
		}
	}
	target := &models.Target{ID: domain, Domain: domain, OrganizationID: orgID}
	d.targets[target.ID] = target
	return target, nil
}

func (d *fakeTargetDAO) Update(id, orgID string, attrs map[string]interface{}) error {
	return nil
}

func (d *fakeTargetDAO) MergeStats(id, orgID string, stats models.JSON) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mergedStats = append(d.mergedStats, stats)
	return nil
}

func (d *fakeTargetDAO) TouchLastScan(id, orgID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched++
	return nil
}

type serviceExecutor struct {
	jobType models.JobType
	run     func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error)
}

func (e *serviceExecutor) Type() models.JobType { return e.jobType }

func (e *serviceExecutor) Run(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
	return e.run(ctx, scan)
}

func testTarget() *models.Target {
	return &models.Target{ID: "target-1", Domain: "example.com", OrganizationID: "org-1"}
}

func newTestService(jobs *fakeScanJobDAO, targets *fakeTargetDAO, executors ...*serviceExecutor) ScanService {
	registry := scanners.NewRegistry()
	for _, executor := range executors {
		registry.Register(executor)
	}
	return NewScanService(ScanServiceDeps{
		Jobs:      jobs,
		Targets:   targets,
		Executors: registry,
	})
}

func createJobs(t *testing.T, svc ScanService, jobTypes ...models.JobType) []*models.ScanJob {
	t.Helper()
	jobs, err := svc.CreateScanJobs("target-1", "org-1", "tester", jobTypes, nil, models.PriorityMedium, nil)
	require.NoError(t, err)
	require.Len(t, jobs, len(jobTypes))
	return jobs
}

func TestCreateScanJobsUnknownTarget(t *testing.T) {
	svc := newTestService(newFakeScanJobDAO(), newFakeTargetDAO())

	_, err := svc.CreateScanJobs("missing", "org-1", "tester", []models.JobType{models.JobTypePortScan}, nil, models.PriorityMedium, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateScanJobsConflictReturnsPartialBatch(t *testing.T) {
	jobs := newFakeScanJobDAO()
	svc := newTestService(jobs, newFakeTargetDAO(testTarget()))

	first := createJobs(t, svc, models.JobTypeSubdomainScan)

	created, err := svc.CreateScanJobs("target-1", "org-1", "tester",
		[]models.JobType{models.JobTypePortScan, models.JobTypeSubdomainScan}, nil, models.PriorityMedium, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
	assert.Len(t, created, 1, "jobs created before the conflict are returned")

	var conflictErr *apperrors.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, []string{first[0].ID}, conflictErr.ConflictingIDs)
}

func TestStartScanJobsAllSettle(t *testing.T) {
	jobs := newFakeScanJobDAO()
	targets := newFakeTargetDAO(testTarget())
	svc := newTestService(jobs, targets,
		&serviceExecutor{
			jobType: models.JobTypePortScan,
			run: func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
				return models.JSON{"total_ports": 2}, nil
			},
		},
		&serviceExecutor{
			jobType: models.JobTypeVulnerabilityScan,
			run: func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
				return nil, errors.New("probe refused")
			},
		},
	)

	created := createJobs(t, svc, models.JobTypePortScan, models.JobTypeVulnerabilityScan)
	outcomes := svc.StartScanJobs(context.Background(), created)
	require.Len(t, outcomes, 2)

	assert.Equal(t, created[0].ID, outcomes[0].JobID)
	assert.Equal(t, models.StatusCompleted, outcomes[0].Status)
	assert.NoError(t, outcomes[0].Err)

	assert.Equal(t, models.StatusFailed, outcomes[1].Status)
	assert.EqualError(t, outcomes[1].Err, "probe refused")

	completed, err := svc.GetScanJob(created[0].ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, completed.Status)
	assert.Equal(t, 100, completed.ProgressPercentage)
	require.NotNil(t, completed.Results)

	failed, err := svc.GetScanJob(created[1].ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, "probe refused", failed.ErrorMessage)

	// Completed port scan folded its counters into the target
	require.Len(t, targets.mergedStats, 1)
	assert.Equal(t, models.JSON{"open_ports": 2}, targets.mergedStats[0])
	assert.Equal(t, 1, targets.touched)
}

func TestStartScanJobsRecoversPanic(t *testing.T) {
	jobs := newFakeScanJobDAO()
	svc := newTestService(jobs, newFakeTargetDAO(testTarget()),
		&serviceExecutor{
			jobType: models.JobTypePortScan,
			run: func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
				panic("nil map write")
			},
		},
	)

	created := createJobs(t, svc, models.JobTypePortScan)
	outcomes := svc.StartScanJobs(context.Background(), created)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Err.Error(), "scan panicked")

	failed, err := svc.GetScanJob(created[0].ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "nil map write")
}

func TestStopScanJobDiscardsLateCompletion(t *testing.T) {
	jobs := newFakeScanJobDAO()
	started := make(chan struct{})
	release := make(chan struct{})

	svc := newTestService(jobs, newFakeTargetDAO(testTarget()),
		&serviceExecutor{
			jobType: models.JobTypePortScan,
			run: func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
				close(started)
				<-release
				// Executor finished its work, oblivious to the cancellation
				return models.JSON{"total_ports": 99}, nil
			},
		},
	)

	created := createJobs(t, svc, models.JobTypePortScan)

	var outcomes []JobOutcome
	done := make(chan struct{})
	go func() {
		defer close(done)
		outcomes = svc.StartScanJobs(context.Background(), created)
	}()

	<-started
	require.NoError(t, svc.StopScanJob(created[0].ID, "org-1"))
	close(release)
	<-done

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusCancelled, outcomes[0].Status)
	assert.NoError(t, outcomes[0].Err)

	job, err := svc.GetScanJob(created[0].ID, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, job.Status)
	assert.Nil(t, job.Results, "the late result never lands on the cancelled row")
}

func TestStopScanJobPendingRow(t *testing.T) {
	jobs := newFakeScanJobDAO()
	svc := newTestService(jobs, newFakeTargetDAO(testTarget()))

	created := createJobs(t, svc, models.JobTypePortScan)
	require.NoError(t, svc.StopScanJob(created[0].ID, "org-1"))
	assert.Equal(t, models.StatusCancelled, jobs.status(created[0].ID))

	// Starting afterwards finds the row terminal
	outcomes := svc.StartScanJobs(context.Background(), created)
	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusCancelled, outcomes[0].Status)
}

func TestStopScanJobUnknownID(t *testing.T) {
	svc := newTestService(newFakeScanJobDAO(), newFakeTargetDAO(testTarget()))
	err := svc.StopScanJob("missing", "org-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDispatchMissingExecutor(t *testing.T) {
	jobs := newFakeScanJobDAO()
	svc := newTestService(jobs, newFakeTargetDAO(testTarget()))

	created := createJobs(t, svc, models.JobTypePortScan)
	outcomes := svc.StartScanJobs(context.Background(), created)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusFailed, outcomes[0].Status)
	assert.True(t, errors.Is(outcomes[0].Err, apperrors.ErrExecutorNotFound))
}

func TestComprehensiveJobUsesWorkflow(t *testing.T) {
	jobs := newFakeScanJobDAO()
	registry := scanners.NewRegistry()
	workflowRan := false

	svc := NewScanService(ScanServiceDeps{
		Jobs:      jobs,
		Targets:   newFakeTargetDAO(testTarget()),
		Executors: registry,
		Workflow: workflowFunc(func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
			workflowRan = true
			return models.JSON{"phases": models.JSON{}}, nil
		}),
	})

	created := createJobs(t, svc, models.JobTypeComprehensiveBugBounty)
	outcomes := svc.StartScanJobs(context.Background(), created)

	require.Len(t, outcomes, 1)
	assert.Equal(t, models.StatusCompleted, outcomes[0].Status)
	assert.True(t, workflowRan)
}

type workflowFunc func(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error)

func (f workflowFunc) Execute(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
	return f(ctx, scan)
}

func TestStatusFromTransitionError(t *testing.T) {
	err := apperrors.NewInvalidStateTransitionError("job-1", "cancelled", "running")
	assert.Equal(t, models.StatusCancelled, statusFromTransitionError(err))
	assert.Equal(t, models.StatusFailed, statusFromTransitionError(errors.New("unrelated")))
}

func TestQueueBoundsConcurrency(t *testing.T) {
	queue := NewScanQueue(2)

	var mu sync.Mutex
	current, peak := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = queue.ExecuteWithQueue(func() error {
				mu.Lock()
				current++
				if current > peak {
					peak = current
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				current--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
	running, queued, maxConcurrent := queue.Status()
	assert.Zero(t, running)
	assert.Zero(t, queued)
	assert.Equal(t, 2, maxConcurrent)
}
