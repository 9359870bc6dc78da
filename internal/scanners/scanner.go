// Package scanners implements the per-type scan executors. Each executor
// performs one unit of scanning work against a target and returns a
// JSON-serializable result, or fails with an ExecutionError. External tools
// sit behind the runner.CommandRunner interface so the dispatch and
// consolidation logic is testable without real binaries.
package scanners

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/dao"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/runner"
)

// Stores bundles the asset DAOs executors persist findings through
type Stores struct {
	Subdomains      dao.SubdomainDAO
	Ports           dao.PortDAO
	Directories     dao.DirectoryDAO
	Vulnerabilities dao.VulnerabilityDAO
}

// ScanContext carries everything one executor invocation needs
type ScanContext struct {
	Job      *models.ScanJob
	Target   *models.Target
	Settings *config.ScanSettings
	Stores   Stores
	Runner   runner.CommandRunner
	Client   *http.Client
	Logger   *logger.Logger

	// Progress receives advisory percentage updates at coarse milestones.
	// Optional; staleness is not an error condition.
	Progress func(percentage int)
}

// ReportProgress forwards a milestone to the progress callback if one is set
func (sc *ScanContext) ReportProgress(percentage int) {
	if sc.Progress != nil {
		sc.Progress(percentage)
	}
}

// IntOption reads an integer knob from the per-scan config blob, falling back
// to def. Unknown keys and wrong types are ignored, not rejected.
func (sc *ScanContext) IntOption(key string, def int) int {
	if sc.Job == nil || sc.Job.Config == nil {
		return def
	}
	switch v := sc.Job.Config[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// StringOption reads a string knob from the per-scan config blob
func (sc *ScanContext) StringOption(key, def string) string {
	if sc.Job == nil || sc.Job.Config == nil {
		return def
	}
	if v, ok := sc.Job.Config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// BoolOption reads a boolean knob from the per-scan config blob
func (sc *ScanContext) BoolOption(key string, def bool) bool {
	if sc.Job == nil || sc.Job.Config == nil {
		return def
	}
	if v, ok := sc.Job.Config[key].(bool); ok {
		return v
	}
	return def
}

// BatchSize returns the bounded-concurrency batch size for host probing
func (sc *ScanContext) BatchSize() int {
	def := 10
	if sc.Settings != nil && sc.Settings.BatchSize > 0 {
		def = sc.Settings.BatchSize
	}
	return sc.IntOption("batch_size", def)
}

// HTTPTimeout returns the per-request probe timeout
func (sc *ScanContext) HTTPTimeout() time.Duration {
	if sc.Settings != nil && sc.Settings.HTTPTimeout > 0 {
		return sc.Settings.HTTPTimeout
	}
	return 10 * time.Second
}

// ToolTimeout returns the external tool subprocess timeout
func (sc *ScanContext) ToolTimeout() time.Duration {
	if sc.Settings != nil && sc.Settings.ToolTimeout > 0 {
		return sc.Settings.ToolTimeout
	}
	return 10 * time.Minute
}

// Executor performs one scan type's work
type Executor interface {
	Type() models.JobType
	Run(ctx context.Context, scan *ScanContext) (models.JSON, error)
}

// Registry maps job types to executor implementations. Dispatch by enum
// variant keeps adding a scan type a closed, type-checked extension.
type Registry struct {
	mu        sync.RWMutex
	executors map[models.JobType]Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: make(map[models.JobType]Executor)}
}

func (r *Registry) Register(executor Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[executor.Type()] = executor
}

func (r *Registry) Get(jobType models.JobType) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	executor, ok := r.executors[jobType]
	return executor, ok
}

// Types returns the registered job types
func (r *Registry) Types() []models.JobType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]models.JobType, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, t)
	}
	return types
}

// DefaultRegistry wires every individual executor. The comprehensive workflow
// is not registered here; it is orchestrated a level up and reuses these.
func DefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(NewSubdomainScanner())
	registry.Register(NewLiveHostsScanner())
	registry.Register(NewPortScanner())
	registry.Register(NewContentDiscoveryScanner())
	registry.Register(NewJSAnalysisScanner())
	registry.Register(NewAPIDiscoveryScanner())
	registry.Register(NewVulnerabilityScanner())

	full := NewFullScanner(registry)
	registry.Register(full)
	return registry
}
