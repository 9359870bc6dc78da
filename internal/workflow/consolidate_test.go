package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

func TestConsolidateConcatenatesInPhaseOrder(t *testing.T) {
	phases := twoPhaseCatalog()
	wf := &models.WorkflowResult{
		Phases: map[string]*models.PhaseResult{
			"discovery": {
				ScanResults: map[string]models.JSON{
					"subdomain_scan": {
						"subdomains": []string{"a.example.com", "b.example.com"},
					},
				},
			},
			"assessment": {
				ScanResults: map[string]models.JSON{
					"vulnerability_scan": {
						"vulnerabilities": []models.JSON{
							{"type": "missing_security_header", "severity": "medium"},
						},
					},
				},
			},
		},
	}

	cf := Consolidate(wf, phases)

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cf.Subdomains)
	require.Len(t, cf.Vulnerabilities, 1)
	assert.Empty(t, cf.LiveHosts)
	assert.NotNil(t, cf.OpenPorts)
}

func TestConsolidateSkipsFailedScans(t *testing.T) {
	phases := []Phase{{Key: "discovery", Order: 1, Scans: []string{"subdomain_scan"}}}
	wf := &models.WorkflowResult{
		Phases: map[string]*models.PhaseResult{
			"discovery": {
				ScanResults: map[string]models.JSON{
					"subdomain_scan": {
						"status":     "failed",
						"error":      "resolver down",
						"subdomains": []string{"should-not-appear.example.com"},
					},
				},
			},
		},
	}

	cf := Consolidate(wf, phases)
	assert.Empty(t, cf.Subdomains)
}

func TestConsolidateKeepsCrossPhaseDuplicates(t *testing.T) {
	phases := []Phase{
		{Key: "one", Order: 1, Scans: []string{"vulnerability_scan"}},
		{Key: "two", Order: 2, Scans: []string{"api_security_testing"}},
	}
	finding := models.JSON{"type": "sql_injection", "severity": "critical", "url": "https://api.example.com/users"}
	wf := &models.WorkflowResult{
		Phases: map[string]*models.PhaseResult{
			"one": {ScanResults: map[string]models.JSON{"vulnerability_scan": {"vulnerabilities": []models.JSON{finding}}}},
			"two": {ScanResults: map[string]models.JSON{"api_security_testing": {"vulnerabilities": []models.JSON{finding}}}},
		},
	}

	cf := Consolidate(wf, phases)
	require.Len(t, cf.Vulnerabilities, 2)

	// Both occurrences drive chain synthesis
	chains := GenerateAttackChains(cf, Posture{})
	assert.Len(t, chains, 2)
}

func TestDeduplicate(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	cf.Subdomains = []string{"a.example.com", "a.example.com", "b.example.com"}
	cf.Vulnerabilities = []models.JSON{
		{"type": "sql_injection", "url": "https://a.example.com/q"},
		{"type": "sql_injection", "url": "https://a.example.com/q"},
		{"type": "sql_injection", "url": "https://b.example.com/q"},
	}
	cf.OpenPorts = []models.JSON{
		{"host": "a.example.com", "port": 443, "protocol": "tcp"},
		{"host": "a.example.com", "port": 443, "protocol": "tcp"},
	}

	out := Deduplicate(cf)

	assert.Equal(t, []string{"a.example.com", "b.example.com"}, out.Subdomains)
	assert.Len(t, out.Vulnerabilities, 2)
	assert.Len(t, out.OpenPorts, 1)

	// Input untouched
	assert.Len(t, cf.Subdomains, 3)
}

func TestIdentifyHighValueTargets(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	cf.Subdomains = []string{"dev-api.example.com", "www.example.com", "testing.example.com"}
	cf.DiscoveredContent = []models.JSON{
		{"path": "/admin/login", "content_type": "page"},
		{"path": "/phpmyadmin/", "content_type": "page"},
	}
	cf.Vulnerabilities = []models.JSON{
		{"type": "sql_injection", "severity": "critical", "url": "https://api.example.com/users"},
		{"type": "auth_bypass", "severity": "critical", "url": "https://app.example.com/login"},
	}

	targets := IdentifyHighValueTargets(cf)

	byReason := map[string][]string{}
	for _, target := range targets {
		byReason[target.Reason] = append(byReason[target.Reason], target.Target)
	}

	assert.Equal(t, []string{"/admin/login"}, byReason["Admin interface exposed"])
	assert.Equal(t, []string{"https://api.example.com/users"}, byReason["API vulnerability present"])
	assert.Equal(t, []string{"dev-api.example.com"}, byReason["Development or staging host exposed"],
		"whole-label hints only: testing.example.com is not flagged")
	assert.Equal(t, []string{"/phpmyadmin/"}, byReason["Database admin interface exposed"])
	assert.Equal(t, []string{"https://app.example.com/login"}, byReason["Authentication bypass found"])
}

func TestIdentifyHighValueTargetsOneEntryPerCriterion(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	// One path matching both the admin and the database-admin predicates
	cf.DiscoveredContent = []models.JSON{{"path": "/admin/phpmyadmin/", "content_type": "page"}}

	targets := IdentifyHighValueTargets(cf)
	require.Len(t, targets, 2)
	assert.NotEqual(t, targets[0].Reason, targets[1].Reason)
}
