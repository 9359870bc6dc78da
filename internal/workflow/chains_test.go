package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

func TestEstimateLikelihood(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		posture  Posture
		want     string
	}{
		{"critical, undefended, large surface", "critical", Posture{AttackSurfaceSize: 100}, "Very High"},
		{"critical, undefended, small surface", "critical", Posture{AttackSurfaceSize: 5}, "High"},
		{"critical behind security products", "critical", Posture{SecurityProductsDetected: true, AttackSurfaceSize: 5}, "Medium"},
		{"high, undefended, medium surface", "high", Posture{AttackSurfaceSize: 20}, "High"},
		{"low severity, defended, tiny surface", "low", Posture{SecurityProductsDetected: true}, "Low"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, estimateLikelihood(tt.severity, tt.posture))
		})
	}
}

func TestGenerateAttackChains(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	cf.Vulnerabilities = []models.JSON{
		{"type": "sql_injection", "severity": "critical", "url": "https://api.example.com/users"},
		{"type": "missing_security_header", "severity": "medium", "url": "https://www.example.com"},
		{"type": "made_up_class", "severity": "critical", "host": "edge.example.com"},
	}

	chains := GenerateAttackChains(cf, Posture{AttackSurfaceSize: 5})
	require.Len(t, chains, 2, "only critical findings produce chains")

	sqli := chains[0]
	assert.Equal(t, "sql injection exploitation chain", sqli.Name)
	assert.Equal(t, "https://api.example.com/users", sqli.Target)
	assert.Equal(t, "Full database compromise and data exfiltration", sqli.EstimatedImpact)
	assert.Len(t, sqli.Steps, 5)
	assert.Equal(t, "High", sqli.Likelihood)

	unknown := chains[1]
	assert.Equal(t, "edge.example.com", unknown.Target, "host fallback when url is absent")
	assert.Equal(t, defaultAttackImpact, unknown.EstimatedImpact)
}

func TestGenerateRecommendationsGating(t *testing.T) {
	t.Run("no critical or high findings", func(t *testing.T) {
		cf := models.NewConsolidatedFindings()
		cf.Vulnerabilities = []models.JSON{{"type": "missing_security_header", "severity": "low"}}

		rec := GenerateRecommendations(cf)
		assert.Empty(t, rec.Immediate)
		assert.Empty(t, rec.ShortTerm)
		assert.Equal(t, longTermRecommendations, rec.LongTerm)
		assert.Empty(t, rec.PriorityVulnerabilities)
	})

	t.Run("critical findings unlock the immediate list", func(t *testing.T) {
		cf := models.NewConsolidatedFindings()
		cf.Vulnerabilities = []models.JSON{{"type": "sql_injection", "severity": "critical"}}

		rec := GenerateRecommendations(cf)
		assert.Equal(t, immediateRecommendations, rec.Immediate)
		assert.Empty(t, rec.ShortTerm)
	})

	t.Run("high findings unlock the short-term list", func(t *testing.T) {
		cf := models.NewConsolidatedFindings()
		cf.Vulnerabilities = []models.JSON{{"type": "xss", "severity": "high"}}

		rec := GenerateRecommendations(cf)
		assert.Empty(t, rec.Immediate)
		assert.Equal(t, shortTermRecommendations, rec.ShortTerm)
	})
}

func TestGenerateRecommendationsSortsPriorityVulnerabilities(t *testing.T) {
	cf := models.NewConsolidatedFindings()
	cf.Vulnerabilities = []models.JSON{
		{"type": "xss", "severity": "high", "url": "first-high"},
		{"type": "sql_injection", "severity": "critical", "url": "the-critical"},
		{"type": "idor", "severity": "high", "url": "second-high"},
		{"type": "noise", "severity": "info"},
	}

	rec := GenerateRecommendations(cf)
	require.Len(t, rec.PriorityVulnerabilities, 3)
	assert.Equal(t, "the-critical", rec.PriorityVulnerabilities[0]["url"])

	// Stable sort keeps equal severities in input order
	assert.Equal(t, "first-high", rec.PriorityVulnerabilities[1]["url"])
	assert.Equal(t, "second-high", rec.PriorityVulnerabilities[2]["url"])
}
