package services

import (
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// extractTargetStats maps a completed job's result into the target's rolling
// stats blob. The merge itself happens in the storage layer so concurrent
// jobs against one target never clobber each other's counters.
func extractTargetStats(jobType models.JobType, result models.JSON) models.JSON {
	if result == nil {
		return nil
	}

	stats := models.JSON{}
	copyKey := func(from, to string) {
		if v, ok := result[from]; ok {
			stats[to] = v
		}
	}

	switch jobType {
	case models.JobTypeSubdomainScan:
		copyKey("total_count", "subdomains")
		copyKey("alive_count", "alive_subdomains")
	case models.JobTypeLiveHostsScan:
		copyKey("live_count", "live_hosts")
	case models.JobTypePortScan:
		copyKey("total_ports", "open_ports")
	case models.JobTypeContentDiscovery:
		copyKey("total_count", "discovered_content")
	case models.JobTypeJSFilesScan:
		copyKey("files_analyzed", "js_files")
		copyKey("secrets_found", "js_secrets")
	case models.JobTypeAPIDiscovery:
		copyKey("total_endpoints", "api_endpoints")
		copyKey("api_vulnerability_count", "api_vulnerabilities")
	case models.JobTypeVulnerabilityScan:
		copyKey("findings_count", "vulnerabilities")
		copyKey("risk_score", "risk_score")
	}

	if len(stats) == 0 {
		return nil
	}
	return stats
}

// countCriticalFindings walks the finding collections a result may carry and
// counts critical-severity entries. Results are stored as generic JSON, so
// entries appear either as typed maps or as decoded interface slices.
func countCriticalFindings(result models.JSON) int {
	count := 0
	for _, key := range []string{"vulnerabilities", "api_vulnerabilities", "findings"} {
		count += countCriticalIn(result[key])
	}
	if nested, ok := result["scans"].(models.JSON); ok {
		for _, stepResult := range nested {
			if step, ok := stepResult.(models.JSON); ok {
				count += countCriticalFindings(step)
			}
		}
	}
	return count
}

func countCriticalIn(value interface{}) int {
	count := 0
	switch entries := value.(type) {
	case []models.JSON:
		for _, entry := range entries {
			if severity, _ := entry["severity"].(string); severity == "critical" {
				count++
			}
		}
	case []interface{}:
		for _, raw := range entries {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			if severity, _ := entry["severity"].(string); severity == "critical" {
				count++
			}
		}
	}
	return count
}
