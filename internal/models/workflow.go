package models

import "time"

// WorkflowResult accumulates one comprehensive assessment run. It lives in
// memory while the orchestrator executes and is persisted only as the owning
// ScanJob's Results blob.
type WorkflowResult struct {
	TargetDomain         string                  `json:"target_domain"`
	StartedAt            time.Time               `json:"started_at"`
	Phases               map[string]*PhaseResult `json:"phases"`
	ConsolidatedFindings *ConsolidatedFindings   `json:"consolidated_findings"`
	HighValueTargets     []HighValueTarget       `json:"high_value_targets"`
	AttackChains         []AttackChain           `json:"attack_chains"`
	FinalRecommendations *Recommendations        `json:"final_recommendations"`
	TotalDurationSeconds float64                 `json:"total_duration_seconds"`
}

// PhaseResult records one workflow phase. ScanResults maps each scan type to
// its raw executor output, or to a failure marker when that scan type threw.
type PhaseResult struct {
	PhaseName            string          `json:"phase_name"`
	StartedAt            time.Time       `json:"started_at"`
	CompletedAt          time.Time       `json:"completed_at"`
	DurationSeconds      float64         `json:"duration_seconds"`
	ScanResults          map[string]JSON `json:"scan_results"`
	FindingsSummary      map[string]JSON `json:"findings_summary"`
	PhaseRecommendations []string        `json:"phase_recommendations"`
}

// ConsolidatedFindings merges every phase's raw results into unified
// collections. Concatenation only: duplicates across phases are kept.
type ConsolidatedFindings struct {
	Subdomains        []string `json:"subdomains"`
	LiveHosts         []JSON   `json:"live_hosts"`
	OpenPorts         []JSON   `json:"open_ports"`
	DiscoveredContent []JSON   `json:"discovered_content"`
	APIs              []JSON   `json:"apis"`
	Vulnerabilities   []JSON   `json:"vulnerabilities"`
	Technologies      []JSON   `json:"technologies"`
}

// NewConsolidatedFindings returns an empty (non-nil) finding set
func NewConsolidatedFindings() *ConsolidatedFindings {
	return &ConsolidatedFindings{
		Subdomains:        []string{},
		LiveHosts:         []JSON{},
		OpenPorts:         []JSON{},
		DiscoveredContent: []JSON{},
		APIs:              []JSON{},
		Vulnerabilities:   []JSON{},
		Technologies:      []JSON{},
	}
}

// HighValueTarget flags one consolidated item matched by a heuristic
// predicate. An item matching several predicates appears once per match.
type HighValueTarget struct {
	Target            string `json:"target"`
	Reason            string `json:"reason"`
	Priority          string `json:"priority"`
	RecommendedAction string `json:"recommended_action"`
}

// AttackChain is a synthesized exploitation narrative for one critical
// vulnerability.
type AttackChain struct {
	Name             string   `json:"name"`
	Vulnerability    string   `json:"vulnerability"`
	Target           string   `json:"target"`
	Steps            []string `json:"steps"`
	EstimatedImpact  string   `json:"estimated_impact"`
	Likelihood       string   `json:"likelihood"`
}

// Recommendations categorizes follow-up actions by urgency
type Recommendations struct {
	Immediate               []string `json:"immediate"`
	ShortTerm               []string `json:"short_term"`
	LongTerm                []string `json:"long_term"`
	PriorityVulnerabilities []JSON   `json:"priority_vulnerabilities"`
}
