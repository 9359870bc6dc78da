package workflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// Posture holds the likelihood inputs measured by the exploitation phase
type Posture struct {
	SecurityProductsDetected bool
	AttackSurfaceSize        int
}

// attackImpactByType estimates the blast radius per vulnerability class
var attackImpactByType = map[string]string{
	"sql_injection":           "Full database compromise and data exfiltration",
	"auth_bypass":             "Unauthorized access to protected functionality",
	"xxe":                     "Server-side file disclosure and internal network access",
	"ssrf":                    "Internal service access and cloud credential theft",
	"idor":                    "Horizontal access to other users' data",
	"command_injection":       "Remote code execution on the host",
	"information_disclosure":  "Leakage of internal implementation details",
	"missing_security_header": "Increased exposure to client-side attacks",
}

const defaultAttackImpact = "Unauthorized access to sensitive data"

var severityRank = map[string]int{
	"critical": 4,
	"high":     3,
	"medium":   2,
	"low":      1,
	"info":     0,
}

// chainSteps renders the fixed five-step narrative template for one finding
func chainSteps(vulnType, target string) []string {
	return []string{
		fmt.Sprintf("Reconnaissance: fingerprint %s and map its exposed surface", target),
		fmt.Sprintf("Exploitation: trigger the %s flaw with a crafted request", vulnType),
		"Access: establish a foothold through the exploited endpoint",
		"Escalation: pivot from the foothold to adjacent services and data stores",
		"Exfiltration: extract proof-of-impact data and document the chain",
	}
}

// estimateLikelihood scores severity, defensive posture and surface size
// into a coarse rating
func estimateLikelihood(severity string, posture Posture) string {
	score := 1
	switch severity {
	case "critical":
		score = 3
	case "high":
		score = 2
	}
	if !posture.SecurityProductsDetected {
		score += 2
	}
	switch {
	case posture.AttackSurfaceSize > 50:
		score += 2
	case posture.AttackSurfaceSize > 10:
		score++
	}

	switch {
	case score >= 7:
		return "Very High"
	case score >= 5:
		return "High"
	case score >= 3:
		return "Medium"
	default:
		return "Low"
	}
}

// GenerateAttackChains synthesizes one chain per critical vulnerability.
// Duplicate findings produce duplicate chains on purpose: each occurrence
// was independently surfaced and independently amplifies the signal.
func GenerateAttackChains(cf *models.ConsolidatedFindings, posture Posture) []models.AttackChain {
	chains := []models.AttackChain{}
	for _, vuln := range cf.Vulnerabilities {
		severity, _ := vuln["severity"].(string)
		if severity != "critical" {
			continue
		}

		vulnType, _ := vuln["type"].(string)
		if vulnType == "" {
			vulnType = "unknown"
		}
		target, _ := vuln["url"].(string)
		if target == "" {
			target, _ = vuln["host"].(string)
		}

		impact, ok := attackImpactByType[vulnType]
		if !ok {
			impact = defaultAttackImpact
		}

		chains = append(chains, models.AttackChain{
			Name:            strings.ReplaceAll(vulnType, "_", " ") + " exploitation chain",
			Vulnerability:   vulnType,
			Target:          target,
			Steps:           chainSteps(vulnType, target),
			EstimatedImpact: impact,
			Likelihood:      estimateLikelihood(severity, posture),
		})
	}
	return chains
}

var longTermRecommendations = []string{
	"Adopt a secure development lifecycle with security review gates",
	"Schedule recurring external attack-surface scans",
	"Maintain an asset inventory covering all subdomains and services",
	"Run periodic penetration tests against high-value targets",
}

var immediateRecommendations = []string{
	"Restrict access to systems with critical findings until patched",
	"Patch all critical vulnerabilities",
	"Rotate any credentials exposed in findings",
}

var shortTermRecommendations = []string{
	"Remediate high severity findings within the current sprint",
	"Add the missing security headers across all public hosts",
	"Review access controls on flagged endpoints",
}

// GenerateRecommendations gates the immediate list on critical findings and
// the short-term list on high findings; long-term guidance always applies.
func GenerateRecommendations(cf *models.ConsolidatedFindings) *models.Recommendations {
	rec := &models.Recommendations{
		Immediate:               []string{},
		ShortTerm:               []string{},
		LongTerm:                append([]string{}, longTermRecommendations...),
		PriorityVulnerabilities: []models.JSON{},
	}

	hasCritical, hasHigh := false, false
	for _, vuln := range cf.Vulnerabilities {
		switch vuln["severity"] {
		case "critical":
			hasCritical = true
			rec.PriorityVulnerabilities = append(rec.PriorityVulnerabilities, vuln)
		case "high":
			hasHigh = true
			rec.PriorityVulnerabilities = append(rec.PriorityVulnerabilities, vuln)
		}
	}

	if hasCritical {
		rec.Immediate = append(rec.Immediate, immediateRecommendations...)
	}
	if hasHigh {
		rec.ShortTerm = append(rec.ShortTerm, shortTermRecommendations...)
	}

	sort.SliceStable(rec.PriorityVulnerabilities, func(i, j int) bool {
		si, _ := rec.PriorityVulnerabilities[i]["severity"].(string)
		sj, _ := rec.PriorityVulnerabilities[j]["severity"].(string)
		return severityRank[si] > severityRank[sj]
	})
	return rec
}
