package workflow

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

type stubExecutor struct {
	jobType models.JobType
	result  models.JSON
	err     error
	runs    int
}

func (e *stubExecutor) Type() models.JobType { return e.jobType }

func (e *stubExecutor) Run(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
	e.runs++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func newWorkflowScan() *scanners.ScanContext {
	return &scanners.ScanContext{
		Job:    &models.ScanJob{ID: "job-1", TargetID: "target-1", Config: models.JSON{}},
		Target: &models.Target{ID: "target-1", Domain: "example.com", OrganizationID: "org-1"},
		Settings: &config.ScanSettings{
			BatchSize:   4,
			HTTPTimeout: 2 * time.Second,
		},
		Client: &http.Client{Timeout: 2 * time.Second},
		Logger: logger.NewLogger(logrus.ErrorLevel),
	}
}

func twoPhaseCatalog() []Phase {
	return []Phase{
		{
			Key:   "discovery",
			Name:  "Discovery",
			Order: 1,
			Scans: []string{"subdomain_scan"},
		},
		{
			Key:          "assessment",
			Name:         "Assessment",
			Order:        2,
			Scans:        []string{"vulnerability_scan"},
			Dependencies: []string{"discovery"},
		},
	}
}

func TestExecuteRunsPhasesInOrder(t *testing.T) {
	registry := scanners.NewRegistry()
	subdomains := &stubExecutor{
		jobType: models.JobTypeSubdomainScan,
		result:  models.JSON{"subdomains": []string{"a.example.com"}, "total_count": 1},
	}
	vulns := &stubExecutor{
		jobType: models.JobTypeVulnerabilityScan,
		result:  models.JSON{"vulnerabilities": []models.JSON{}, "findings_count": 0, "risk_score": 0},
	}
	registry.Register(subdomains)
	registry.Register(vulns)

	scan := newWorkflowScan()
	var milestones []int
	scan.Progress = func(pct int) { milestones = append(milestones, pct) }

	result, err := NewOrchestrator(twoPhaseCatalog(), registry).Execute(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, 1, subdomains.runs)
	assert.Equal(t, 1, vulns.runs)

	phases := result["phases"].(map[string]interface{})
	require.Contains(t, phases, "discovery")
	require.Contains(t, phases, "assessment")

	consolidated := result["consolidated_findings"].(map[string]interface{})
	assert.Equal(t, []interface{}{"a.example.com"}, consolidated["subdomains"])

	assert.Equal(t, "example.com", result["target_domain"])
	assert.Contains(t, result, "final_recommendations")
	assert.Contains(t, result, "total_duration_seconds")

	// Phase milestones first, then the fixed analysis checkpoints
	assert.Subset(t, milestones, []int{40, 80, 85, 90, 95, 100})
	assert.Equal(t, 100, milestones[len(milestones)-1])
}

func TestExecuteFailsOnUnmetDependency(t *testing.T) {
	phases := []Phase{
		{Key: "assessment", Name: "Assessment", Order: 1, Scans: []string{"vulnerability_scan"}, Dependencies: []string{"discovery"}},
	}

	_, err := NewOrchestrator(phases, scanners.NewRegistry()).Execute(context.Background(), newWorkflowScan())
	require.Error(t, err)

	var depErr *apperrors.DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "assessment", depErr.Phase)
	assert.Equal(t, "discovery", depErr.Dependency)
}

func TestExecuteIsolatesScanFailureWithinPhase(t *testing.T) {
	registry := scanners.NewRegistry()
	subdomains := &stubExecutor{jobType: models.JobTypeSubdomainScan, err: errors.New("resolver down")}
	liveHosts := &stubExecutor{jobType: models.JobTypeLiveHostsScan, result: models.JSON{"live_count": 0, "live_hosts": []models.JSON{}}}
	vulns := &stubExecutor{jobType: models.JobTypeVulnerabilityScan, result: models.JSON{"findings_count": 0}}
	registry.Register(subdomains)
	registry.Register(liveHosts)
	registry.Register(vulns)

	phases := twoPhaseCatalog()
	phases[0].Scans = []string{"subdomain_scan", "live_hosts_scan"}

	result, err := NewOrchestrator(phases, registry).Execute(context.Background(), newWorkflowScan())
	require.NoError(t, err)

	assert.Equal(t, 1, liveHosts.runs, "sibling scan still runs after the failure")
	assert.Equal(t, 1, vulns.runs, "dependent phase still runs; only dependency absence blocks it")

	discovery := result["phases"].(map[string]interface{})["discovery"].(map[string]interface{})
	scanResults := discovery["scan_results"].(map[string]interface{})
	failed := scanResults["subdomain_scan"].(map[string]interface{})
	assert.Equal(t, "failed", failed["status"])
	assert.Equal(t, "resolver down", failed["error"])
	assert.NotEmpty(t, failed["timestamp"])

	summary := discovery["findings_summary"].(map[string]interface{})
	assert.NotContains(t, summary, "subdomain_scan")
	assert.Contains(t, summary, "live_hosts_scan")
}

func TestExecuteUnknownScanTypeRecordedAsFailed(t *testing.T) {
	phases := []Phase{{Key: "discovery", Name: "Discovery", Order: 1, Scans: []string{"subdomain_scan"}}}

	result, err := NewOrchestrator(phases, scanners.NewRegistry()).Execute(context.Background(), newWorkflowScan())
	require.NoError(t, err)

	discovery := result["phases"].(map[string]interface{})["discovery"].(map[string]interface{})
	failed := discovery["scan_results"].(map[string]interface{})["subdomain_scan"].(map[string]interface{})
	assert.Equal(t, "failed", failed["status"])
}

func TestSummarizeSelectsDigestKeys(t *testing.T) {
	output := models.JSON{
		"total_count": 12,
		"alive_count": 4,
		"tools_used":  []string{"subfinder"},
		"subdomains":  []string{"a.example.com"},
	}

	summary := summarize("subdomain_scan", output)
	assert.Equal(t, models.JSON{
		"total_count": 12,
		"alive_count": 4,
		"tools_used":  []string{"subfinder"},
	}, summary)

	assert.Equal(t, models.JSON{}, summarize("unknown_scan", output))
}

func TestExtractPosture(t *testing.T) {
	wf := &models.WorkflowResult{
		Phases: map[string]*models.PhaseResult{
			"exploitation": {
				ScanResults: map[string]models.JSON{
					ScanAttackChainAnalysis: {
						"security_products_detected": true,
						"attack_surface_size":        float64(42),
					},
				},
			},
		},
		ConsolidatedFindings: models.NewConsolidatedFindings(),
	}

	posture := extractPosture(wf)
	assert.True(t, posture.SecurityProductsDetected)
	assert.Equal(t, 42, posture.AttackSurfaceSize)
}

func TestExtractPostureRecomputesWhenAnalysisMissing(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	cf.Subdomains = []string{"a.example.com", "b.example.com"}
	cf.OpenPorts = []models.JSON{{"port": 443}}

	wf := &models.WorkflowResult{
		Phases:               map[string]*models.PhaseResult{},
		ConsolidatedFindings: cf,
	}

	posture := extractPosture(wf)
	assert.False(t, posture.SecurityProductsDetected)
	assert.Equal(t, 3, posture.AttackSurfaceSize)
}
