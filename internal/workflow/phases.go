// Package workflow runs the comprehensive multi-phase assessment: an ordered
// set of phases, each a list of scan types gated on earlier phases, followed
// by consolidation, high-value target triage, attack-chain synthesis and
// final recommendations.
package workflow

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// Scan types that only exist inside the workflow. The per-job types from
// models cover the rest.
const (
	ScanTechnologyDetection = "technology_detection"
	ScanAPISecurityTesting  = "api_security_testing"
	ScanExploitVerification = "exploit_verification"
	ScanAttackChainAnalysis = "attack_chain_analysis"
)

// Phase is one ordered group of scan types. Dependencies name phase keys that
// must already be present in the accumulated results before this phase may
// start.
type Phase struct {
	Key             string   `yaml:"key" mapstructure:"key"`
	Name            string   `yaml:"name" mapstructure:"name"`
	Order           int      `yaml:"order" mapstructure:"order"`
	Scans           []string `yaml:"scans" mapstructure:"scans"`
	Dependencies    []string `yaml:"dependencies" mapstructure:"dependencies"`
	Recommendations []string `yaml:"recommendations" mapstructure:"recommendations"`
}

// DefaultPhases is the coded four-phase catalog used when no workflow.yaml
// overrides it.
func DefaultPhases() []Phase {
	return []Phase{
		{
			Key:   "reconnaissance",
			Name:  "Reconnaissance",
			Order: 1,
			Scans: []string{
				"subdomain_scan",
				"live_hosts_scan",
				ScanTechnologyDetection,
				"content_discovery",
			},
			Dependencies: []string{},
			Recommendations: []string{
				"Review discovered subdomains for forgotten or legacy services",
				"Confirm scope coverage before deeper scanning",
			},
		},
		{
			Key:   "attack_surface",
			Name:  "Attack Surface Analysis",
			Order: 2,
			Scans: []string{
				"port_scan",
				"js_files_scan",
				"api_discovery",
			},
			Dependencies: []string{"reconnaissance"},
			Recommendations: []string{
				"Close or firewall ports that do not need public exposure",
				"Audit exposed JavaScript for secrets and debug endpoints",
			},
		},
		{
			Key:   "vulnerability_assessment",
			Name:  "Vulnerability Assessment",
			Order: 3,
			Scans: []string{
				"vulnerability_scan",
				ScanAPISecurityTesting,
			},
			Dependencies: []string{"attack_surface"},
			Recommendations: []string{
				"Prioritize remediation of critical and high findings",
				"Add missing security headers at the edge",
			},
		},
		{
			Key:   "exploitation",
			Name:  "Exploitation Analysis",
			Order: 4,
			Scans: []string{
				ScanExploitVerification,
				ScanAttackChainAnalysis,
			},
			Dependencies: []string{"vulnerability_assessment"},
			Recommendations: []string{
				"Validate exploitability manually before reporting",
				"Chain low-severity findings to demonstrate real impact",
			},
		},
	}
}

// LoadPhases reads an optional workflow.yaml phase catalog from the config
// directory, falling back to the coded defaults. The returned catalog is
// sorted by order.
func LoadPhases(configPath string) ([]Phase, error) {
	v := viper.New()
	v.SetConfigName("workflow")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultPhases(), nil
		}
		return nil, err
	}

	var phases []Phase
	if err := v.UnmarshalKey("phases", &phases); err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return DefaultPhases(), nil
	}

	for _, phase := range phases {
		if phase.Key == "" || phase.Order <= 0 || len(phase.Scans) == 0 {
			return nil, fmt.Errorf("workflow phase %q: key, positive order and at least one scan are required", phase.Key)
		}
	}

	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Order < phases[j].Order })
	return phases, nil
}
