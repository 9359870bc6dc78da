package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// summaryKeys selects the digest fields extracted per scan type into a
// phase's findings_summary. Digests feed progress reporting and phase
// review, never consolidation.
var summaryKeys = map[string][]string{
	"subdomain_scan":        {"total_count", "alive_count", "tools_used"},
	"live_hosts_scan":       {"checked_count", "live_count", "success_rate"},
	ScanTechnologyDetection: {"technology_count", "hosts_fingerprinted"},
	"content_discovery":     {"total_count", "by_type"},
	"port_scan":             {"total_ports", "scanned_hosts", "port_profile"},
	"js_files_scan":         {"files_analyzed", "secrets_found", "risk_level"},
	"api_discovery":         {"total_endpoints", "api_vulnerability_count", "hosts_probed"},
	"vulnerability_scan":    {"findings_count", "risk_score"},
	ScanAPISecurityTesting:  {"tested_endpoints", "vulnerability_count"},
	ScanExploitVerification: {"verified_count", "unverified_count"},
	ScanAttackChainAnalysis: {"critical_count", "attack_surface_size", "security_products_detected"},
}

// handler runs one workflow-only scan type with access to the accumulated
// results and the in-progress phase, so later scans consume earlier outputs.
type handler func(ctx context.Context, scan *scanners.ScanContext, wf *models.WorkflowResult, current *models.PhaseResult) (models.JSON, error)

// Orchestrator executes the phase catalog sequentially against one target.
// One orchestrator instance is safe for concurrent runs; all run state lives
// in the per-run WorkflowResult.
type Orchestrator struct {
	phases   []Phase
	registry *scanners.Registry
	handlers map[string]handler
	logger   *logger.Logger
}

func NewOrchestrator(phases []Phase, registry *scanners.Registry) *Orchestrator {
	if len(phases) == 0 {
		phases = DefaultPhases()
	}
	o := &Orchestrator{
		phases:   phases,
		registry: registry,
		logger:   logger.NewLogger(logrus.InfoLevel),
	}
	o.handlers = map[string]handler{
		ScanTechnologyDetection: o.runTechnologyDetection,
		ScanAPISecurityTesting:  o.runAPISecurityTesting,
		ScanExploitVerification: o.runExploitVerification,
		ScanAttackChainAnalysis: o.runAttackChainAnalysis,
	}
	return o
}

// Execute runs all phases, consolidates findings and derives the escalation
// artifacts. Per-scan-type failures are recorded inside their phase; a
// dependency failure or consolidation error aborts the whole run and the
// caller settles the owning job as failed.
func (o *Orchestrator) Execute(ctx context.Context, scan *scanners.ScanContext) (models.JSON, error) {
	started := time.Now()
	log := o.logger.WithTarget(scan.Target.ID, scan.Target.Domain)

	wf := &models.WorkflowResult{
		TargetDomain:         scan.Target.Domain,
		StartedAt:            started,
		Phases:               make(map[string]*models.PhaseResult, len(o.phases)),
		ConsolidatedFindings: models.NewConsolidatedFindings(),
		HighValueTargets:     []models.HighValueTarget{},
		AttackChains:         []models.AttackChain{},
	}

	totalPhases := len(o.phases)
	for _, phase := range o.phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, dep := range phase.Dependencies {
			if _, ok := wf.Phases[dep]; !ok {
				return nil, apperrors.NewDependencyError(phase.Key, dep)
			}
		}

		log.WithFields(logrus.Fields{"phase": phase.Key, "order": phase.Order}).Info("Workflow phase started")
		wf.Phases[phase.Key] = o.executePhase(ctx, phase, scan, wf)

		// Phases own the bottom 80%; the analysis steps take the rest
		scan.ReportProgress(phase.Order * 80 / totalPhases)
	}

	wf.ConsolidatedFindings = Consolidate(wf, o.phases)
	scan.ReportProgress(85)

	wf.HighValueTargets = IdentifyHighValueTargets(wf.ConsolidatedFindings)
	scan.ReportProgress(90)

	posture := extractPosture(wf)
	wf.AttackChains = GenerateAttackChains(wf.ConsolidatedFindings, posture)
	scan.ReportProgress(95)

	wf.FinalRecommendations = GenerateRecommendations(wf.ConsolidatedFindings)
	wf.TotalDurationSeconds = time.Since(started).Seconds()

	result, err := toJSON(wf)
	if err != nil {
		return nil, fmt.Errorf("encode workflow result: %w", err)
	}

	log.WithFields(logrus.Fields{
		"phases":             len(wf.Phases),
		"high_value_targets": len(wf.HighValueTargets),
		"attack_chains":      len(wf.AttackChains),
		"duration_seconds":   wf.TotalDurationSeconds,
	}).Info("Workflow completed")

	scan.ReportProgress(100)
	return result, nil
}

// executePhase runs every declared scan type sequentially. A scan type's
// failure is recorded as a marker entry and its siblings still run.
func (o *Orchestrator) executePhase(ctx context.Context, phase Phase, scan *scanners.ScanContext, wf *models.WorkflowResult) *models.PhaseResult {
	result := &models.PhaseResult{
		PhaseName:            phase.Name,
		StartedAt:            time.Now(),
		ScanResults:          make(map[string]models.JSON, len(phase.Scans)),
		FindingsSummary:      make(map[string]models.JSON, len(phase.Scans)),
		PhaseRecommendations: append([]string{}, phase.Recommendations...),
	}

	for _, scanType := range phase.Scans {
		if ctx.Err() != nil {
			break
		}

		output, err := o.runScanType(ctx, scanType, scan, wf, result)
		if err != nil {
			o.logger.WithError(err).WithFields(logrus.Fields(logger.Fields{
				"phase":     phase.Key,
				"scan_type": scanType,
			})).Warn("Scan type failed inside phase, continuing with siblings")
			result.ScanResults[scanType] = models.JSON{
				"status":    "failed",
				"error":     err.Error(),
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}
			continue
		}

		result.ScanResults[scanType] = output
		result.FindingsSummary[scanType] = summarize(scanType, output)
	}

	result.CompletedAt = time.Now()
	result.DurationSeconds = result.CompletedAt.Sub(result.StartedAt).Seconds()
	return result
}

func (o *Orchestrator) runScanType(ctx context.Context, scanType string, scan *scanners.ScanContext, wf *models.WorkflowResult, current *models.PhaseResult) (models.JSON, error) {
	if h, ok := o.handlers[scanType]; ok {
		return h(ctx, scan, wf, current)
	}

	executor, ok := o.registry.Get(models.JobType(scanType))
	if !ok {
		return nil, apperrors.NewExecutionError(scanType, apperrors.ErrExecutorNotFound)
	}

	// The orchestrator owns job progress; inner executors report none
	inner := *scan
	inner.Progress = nil
	return executor.Run(ctx, &inner)
}

func summarize(scanType string, result models.JSON) models.JSON {
	keys, ok := summaryKeys[scanType]
	if !ok {
		return models.JSON{}
	}
	summary := models.JSON{}
	for _, key := range keys {
		if v, ok := result[key]; ok {
			summary[key] = v
		}
	}
	return summary
}

// extractPosture pulls the likelihood inputs out of the exploitation phase's
// chain-analysis output, recomputing from consolidated findings when that
// scan did not run.
func extractPosture(wf *models.WorkflowResult) Posture {
	for _, phase := range wf.Phases {
		analysis, ok := phase.ScanResults[ScanAttackChainAnalysis]
		if !ok || analysis["status"] == "failed" {
			continue
		}
		posture := Posture{}
		if v, ok := analysis["security_products_detected"].(bool); ok {
			posture.SecurityProductsDetected = v
		}
		if v, ok := toInt(analysis["attack_surface_size"]); ok {
			posture.AttackSurfaceSize = v
		}
		return posture
	}

	cf := wf.ConsolidatedFindings
	return Posture{
		AttackSurfaceSize: len(cf.Subdomains) + len(cf.APIs) + len(cf.OpenPorts),
	}
}

// toJSON round-trips the typed result through encoding/json into the opaque
// blob shape the job store persists
func toJSON(wf *models.WorkflowResult) (models.JSON, error) {
	raw, err := json.Marshal(wf)
	if err != nil {
		return nil, err
	}
	var out models.JSON
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
