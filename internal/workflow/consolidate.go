package workflow

import (
	"fmt"
	"strings"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// Consolidate concatenates every phase's raw scan results into unified
// collections, in phase order. No cross-phase deduplication happens here:
// the same finding surfaced by two phases appears twice, and downstream
// chain synthesis counts it twice. Deduplicate is the separate opt-in pass.
func Consolidate(wf *models.WorkflowResult, phases []Phase) *models.ConsolidatedFindings {
	cf := models.NewConsolidatedFindings()

	for _, phase := range phases {
		result, ok := wf.Phases[phase.Key]
		if !ok {
			continue
		}
		for _, scanType := range phase.Scans {
			output, ok := result.ScanResults[scanType]
			if !ok || output["status"] == "failed" {
				continue
			}
			cf.Subdomains = append(cf.Subdomains, toStringSlice(output["subdomains"])...)
			cf.LiveHosts = append(cf.LiveHosts, toJSONSlice(output["live_hosts"])...)
			cf.OpenPorts = append(cf.OpenPorts, toJSONSlice(output["open_ports"])...)
			cf.DiscoveredContent = append(cf.DiscoveredContent, toJSONSlice(output["discovered_content"])...)
			cf.APIs = append(cf.APIs, toJSONSlice(output["apis"])...)
			cf.Vulnerabilities = append(cf.Vulnerabilities, toJSONSlice(output["vulnerabilities"])...)
			cf.Technologies = append(cf.Technologies, toJSONSlice(output["technologies"])...)
		}
	}
	return cf
}

// Deduplicate returns a copy of the findings with duplicates removed by
// natural key. It is not part of the standard workflow output; calling it
// changes attack-chain counts, so it stays an explicit, separate step.
func Deduplicate(cf *models.ConsolidatedFindings) *models.ConsolidatedFindings {
	out := models.NewConsolidatedFindings()

	seen := map[string]struct{}{}
	keep := func(key string) bool {
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	}

	for _, sub := range cf.Subdomains {
		if keep("sub|" + sub) {
			out.Subdomains = append(out.Subdomains, sub)
		}
	}
	for _, entry := range cf.LiveHosts {
		if keep(fmt.Sprintf("host|%v", entry["host"])) {
			out.LiveHosts = append(out.LiveHosts, entry)
		}
	}
	for _, entry := range cf.OpenPorts {
		if keep(fmt.Sprintf("port|%v|%v|%v", entry["host"], entry["port"], entry["protocol"])) {
			out.OpenPorts = append(out.OpenPorts, entry)
		}
	}
	for _, entry := range cf.DiscoveredContent {
		if keep(fmt.Sprintf("content|%v|%v", entry["path"], entry["content_type"])) {
			out.DiscoveredContent = append(out.DiscoveredContent, entry)
		}
	}
	for _, entry := range cf.APIs {
		if keep(fmt.Sprintf("api|%v", entry["url"])) {
			out.APIs = append(out.APIs, entry)
		}
	}
	for _, entry := range cf.Vulnerabilities {
		if keep(fmt.Sprintf("vuln|%v|%v", entry["type"], entry["url"])) {
			out.Vulnerabilities = append(out.Vulnerabilities, entry)
		}
	}
	for _, entry := range cf.Technologies {
		if keep(fmt.Sprintf("tech|%v|%v", entry["host"], entry["name"])) {
			out.Technologies = append(out.Technologies, entry)
		}
	}
	return out
}

// highValueCriterion is one boolean triage predicate over the consolidated
// findings. Match returns the items it flags; an item flagged by several
// criteria produces one entry per criterion, each a distinct concern.
type highValueCriterion struct {
	Reason            string
	Priority          string
	RecommendedAction string
	Match             func(cf *models.ConsolidatedFindings) []string
}

var devNamingHints = []string{"dev", "staging", "test", "uat", "beta", "qa", "sandbox"}

var dbAdminPaths = []string{"phpmyadmin", "adminer", "pgadmin", "dbadmin", "mysql", "phppgadmin"}

var highValueCriteria = []highValueCriterion{
	{
		Reason:            "Admin interface exposed",
		Priority:          "high",
		RecommendedAction: "Test default credentials and access controls",
		Match: func(cf *models.ConsolidatedFindings) []string {
			var matches []string
			for _, entry := range cf.DiscoveredContent {
				path, _ := entry["path"].(string)
				if containsAny(strings.ToLower(path), "admin", "dashboard", "panel") {
					matches = append(matches, path)
				}
			}
			for _, entry := range cf.LiveHosts {
				title, _ := entry["title"].(string)
				if containsAny(strings.ToLower(title), "admin", "dashboard", "login panel") {
					if host, _ := entry["host"].(string); host != "" {
						matches = append(matches, host)
					}
				}
			}
			return matches
		},
	},
	{
		Reason:            "API vulnerability present",
		Priority:          "critical",
		RecommendedAction: "Reproduce the API finding and document its impact",
		Match: func(cf *models.ConsolidatedFindings) []string {
			var matches []string
			for _, entry := range cf.Vulnerabilities {
				vulnType, _ := entry["type"].(string)
				switch vulnType {
				case "sql_injection", "idor", "xxe", "ssrf":
					if url, _ := entry["url"].(string); url != "" {
						matches = append(matches, url)
					}
				}
			}
			return matches
		},
	},
	{
		Reason:            "Development or staging host exposed",
		Priority:          "medium",
		RecommendedAction: "Compare against production for weaker controls",
		Match: func(cf *models.ConsolidatedFindings) []string {
			var matches []string
			for _, sub := range cf.Subdomains {
				label := strings.SplitN(sub, ".", 2)[0]
				for _, hint := range devNamingHints {
					if label == hint || strings.HasPrefix(label, hint+"-") || strings.HasSuffix(label, "-"+hint) {
						matches = append(matches, sub)
						break
					}
				}
			}
			return matches
		},
	},
	{
		Reason:            "Database admin interface exposed",
		Priority:          "high",
		RecommendedAction: "Verify authentication and restrict to internal networks",
		Match: func(cf *models.ConsolidatedFindings) []string {
			var matches []string
			for _, entry := range cf.DiscoveredContent {
				path, _ := entry["path"].(string)
				if containsAny(strings.ToLower(path), dbAdminPaths...) {
					matches = append(matches, path)
				}
			}
			return matches
		},
	},
	{
		Reason:            "Authentication bypass found",
		Priority:          "critical",
		RecommendedAction: "Escalate immediately and verify the bypass end to end",
		Match: func(cf *models.ConsolidatedFindings) []string {
			var matches []string
			for _, entry := range cf.Vulnerabilities {
				if vulnType, _ := entry["type"].(string); vulnType == "auth_bypass" {
					if url, _ := entry["url"].(string); url != "" {
						matches = append(matches, url)
					}
				}
			}
			return matches
		},
	},
}

// IdentifyHighValueTargets runs every triage criterion over the consolidated
// findings and returns one entry per (item, criterion) match.
func IdentifyHighValueTargets(cf *models.ConsolidatedFindings) []models.HighValueTarget {
	targets := []models.HighValueTarget{}
	for _, criterion := range highValueCriteria {
		for _, match := range criterion.Match(cf) {
			targets = append(targets, models.HighValueTarget{
				Target:            match,
				Reason:            criterion.Reason,
				Priority:          criterion.Priority,
				RecommendedAction: criterion.RecommendedAction,
			})
		}
	}
	return targets
}

func containsAny(s string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func toJSONSlice(v interface{}) []models.JSON {
	switch entries := v.(type) {
	case []models.JSON:
		return entries
	case []interface{}:
		out := make([]models.JSON, 0, len(entries))
		for _, raw := range entries {
			if entry, ok := raw.(map[string]interface{}); ok {
				out = append(out, models.JSON(entry))
			}
		}
		return out
	}
	return nil
}

func toStringSlice(v interface{}) []string {
	switch entries := v.(type) {
	case []string:
		return entries
	case []interface{}:
		out := make([]string, 0, len(entries))
		for _, raw := range entries {
			if s, ok := raw.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
