package workflow

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
)

const fingerprintUserAgent = "Mozilla/5.0 (compatible; recon-scanner/2.0)"

// techHeaderHints maps response headers to the technology they betray
var techHeaderHints = []struct {
	Header string
	Match  string
	Name   string
}{
	{"Server", "nginx", "nginx"},
	{"Server", "apache", "Apache httpd"},
	{"Server", "iis", "Microsoft IIS"},
	{"Server", "cloudflare", "Cloudflare"},
	{"X-Powered-By", "php", "PHP"},
	{"X-Powered-By", "express", "Express"},
	{"X-Powered-By", "asp.net", "ASP.NET"},
	{"X-Drupal-Cache", "", "Drupal"},
	{"X-Generator", "", ""},
}

// wafHeaderMarkers flag security products in front of the target
var wafHeaderMarkers = []struct {
	Header string
	Match  string
	Name   string
}{
	{"Server", "cloudflare", "Cloudflare"},
	{"CF-RAY", "", "Cloudflare"},
	{"X-Sucuri-ID", "", "Sucuri"},
	{"X-Akamai-Transformed", "", "Akamai"},
	{"X-CDN", "imperva", "Imperva"},
	{"X-Iinfo", "", "Imperva Incapsula"},
	{"Server", "awselb", "AWS ELB"},
}

// maxFingerprintHosts bounds the per-run fingerprinting fan-out
const maxFingerprintHosts = 10

// runTechnologyDetection fingerprints the hosts found alive earlier in the
// same phase via response headers and page metadata.
func (o *Orchestrator) runTechnologyDetection(ctx context.Context, scan *scanners.ScanContext, wf *models.WorkflowResult, current *models.PhaseResult) (models.JSON, error) {
	hosts := hostsFromLiveScan(current)
	if len(hosts) == 0 {
		hosts = []string{scan.Target.Domain}
	}
	if len(hosts) > maxFingerprintHosts {
		hosts = hosts[:maxFingerprintHosts]
	}

	technologies := []models.JSON{}
	fingerprinted := 0
	for _, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		found, ok := fingerprintHost(ctx, scan.Client, host)
		if !ok {
			continue
		}
		fingerprinted++
		technologies = append(technologies, found...)
	}

	return models.JSON{
		"technologies":        technologies,
		"technology_count":    len(technologies),
		"hosts_fingerprinted": fingerprinted,
	}, nil
}

func fingerprintHost(ctx context.Context, client *http.Client, host string) ([]models.JSON, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("User-Agent", fingerprintUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	var found []models.JSON
	seen := map[string]struct{}{}
	record := func(name, source string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		found = append(found, models.JSON{
			"host":   host,
			"name":   name,
			"source": source,
		})
	}

	for _, hint := range techHeaderHints {
		value := resp.Header.Get(hint.Header)
		if value == "" {
			continue
		}
		switch {
		case hint.Match == "" && hint.Name == "":
			// X-Generator carries the product name itself
			record(value, "header:"+hint.Header)
		case hint.Match == "":
			record(hint.Name, "header:"+hint.Header)
		case strings.Contains(strings.ToLower(value), hint.Match):
			record(hint.Name, "header:"+hint.Header)
		}
	}

	if doc, err := goquery.NewDocumentFromReader(resp.Body); err == nil {
		if generator, ok := doc.Find(`meta[name="generator"]`).Attr("content"); ok {
			record(generator, "meta:generator")
		}
	}

	return found, true
}

// runAPISecurityTesting re-tests the endpoints found by api_discovery in the
// attack-surface phase: security headers, permissive CORS and verbose server
// banners.
func (o *Orchestrator) runAPISecurityTesting(ctx context.Context, scan *scanners.ScanContext, wf *models.WorkflowResult, _ *models.PhaseResult) (models.JSON, error) {
	endpoints := apiEndpointsFrom(wf)
	if len(endpoints) > 15 {
		endpoints = endpoints[:15]
	}

	vulnerabilities := []models.JSON{}
	tested := 0
	for _, endpoint := range endpoints {
		if ctx.Err() != nil {
			break
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", fingerprintUserAgent)
		req.Header.Set("Origin", "https://evil.example")

		resp, err := scan.Client.Do(req)
		if err != nil {
			continue
		}
		tested++

		findings, _ := scanners.CheckSecurityHeaders(resp.Header)
		for _, finding := range findings {
			finding["url"] = endpoint
			vulnerabilities = append(vulnerabilities, finding)
		}

		if origin := resp.Header.Get("Access-Control-Allow-Origin"); origin == "*" || strings.Contains(origin, "evil.example") {
			vulnerabilities = append(vulnerabilities, models.JSON{
				"type":     "permissive_cors",
				"severity": "medium",
				"url":      endpoint,
				"evidence": "Access-Control-Allow-Origin: " + origin,
			})
		}
		if server := resp.Header.Get("Server"); strings.ContainsAny(server, "0123456789") {
			vulnerabilities = append(vulnerabilities, models.JSON{
				"type":     "version_disclosure",
				"severity": "low",
				"url":      endpoint,
				"evidence": "Server: " + server,
			})
		}
		resp.Body.Close()
	}

	return models.JSON{
		"tested_endpoints":    tested,
		"vulnerabilities":     vulnerabilities,
		"vulnerability_count": len(vulnerabilities),
	}, nil
}

// runExploitVerification non-destructively confirms that critical and high
// findings from earlier phases still point at reachable endpoints.
func (o *Orchestrator) runExploitVerification(ctx context.Context, scan *scanners.ScanContext, wf *models.WorkflowResult, _ *models.PhaseResult) (models.JSON, error) {
	details := []models.JSON{}
	verified, unverified := 0, 0

	for _, vuln := range collectVulnerabilities(wf) {
		severity, _ := vuln["severity"].(string)
		if severity != "critical" && severity != "high" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		url, _ := vuln["url"].(string)
		reachable := url != "" && endpointReachable(ctx, scan.Client, url)
		if reachable {
			verified++
		} else {
			unverified++
		}
		details = append(details, models.JSON{
			"type":     vuln["type"],
			"severity": severity,
			"url":      url,
			"verified": reachable,
		})
	}

	return models.JSON{
		"verified_count":   verified,
		"unverified_count": unverified,
		"details":          details,
	}, nil
}

func endpointReachable(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", fingerprintUserAgent)
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runAttackChainAnalysis measures the likelihood inputs for chain synthesis:
// critical finding count, attack surface size and security products in front
// of the target.
func (o *Orchestrator) runAttackChainAnalysis(ctx context.Context, scan *scanners.ScanContext, wf *models.WorkflowResult, _ *models.PhaseResult) (models.JSON, error) {
	criticalCount := 0
	for _, vuln := range collectVulnerabilities(wf) {
		if severity, _ := vuln["severity"].(string); severity == "critical" {
			criticalCount++
		}
	}

	surface := 0
	for _, phase := range wf.Phases {
		for scanType, result := range phase.ScanResults {
			if result["status"] == "failed" {
				continue
			}
			switch scanType {
			case "subdomain_scan":
				if n, ok := toInt(result["total_count"]); ok {
					surface += n
				}
			case "port_scan":
				if n, ok := toInt(result["total_ports"]); ok {
					surface += n
				}
			case "api_discovery":
				if n, ok := toInt(result["total_endpoints"]); ok {
					surface += n
				}
			}
		}
	}

	wafIndicators := detectSecurityProducts(ctx, scan)

	return models.JSON{
		"critical_count":             criticalCount,
		"attack_surface_size":        surface,
		"security_products_detected": len(wafIndicators) > 0,
		"waf_indicators":             wafIndicators,
	}, nil
}

func detectSecurityProducts(ctx context.Context, scan *scanners.ScanContext) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+scan.Target.Domain, nil)
	if err != nil {
		return []string{}
	}
	req.Header.Set("User-Agent", fingerprintUserAgent)

	resp, err := scan.Client.Do(req)
	if err != nil {
		return []string{}
	}
	defer resp.Body.Close()

	indicators := []string{}
	seen := map[string]struct{}{}
	for _, marker := range wafHeaderMarkers {
		value := resp.Header.Get(marker.Header)
		if value == "" {
			continue
		}
		if marker.Match != "" && !strings.Contains(strings.ToLower(value), marker.Match) {
			continue
		}
		if _, dup := seen[marker.Name]; dup {
			continue
		}
		seen[marker.Name] = struct{}{}
		indicators = append(indicators, marker.Name)
	}
	return indicators
}

// hostsFromLiveScan reads the live hosts recorded earlier in the same phase
func hostsFromLiveScan(current *models.PhaseResult) []string {
	if current == nil {
		return nil
	}
	result, ok := current.ScanResults["live_hosts_scan"]
	if !ok || result["status"] == "failed" {
		return nil
	}

	var hosts []string
	for _, entry := range toJSONSlice(result["live_hosts"]) {
		if host, _ := entry["host"].(string); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}

// apiEndpointsFrom reads endpoint URLs from any completed api_discovery scan
func apiEndpointsFrom(wf *models.WorkflowResult) []string {
	var endpoints []string
	for _, phase := range wf.Phases {
		result, ok := phase.ScanResults["api_discovery"]
		if !ok || result["status"] == "failed" {
			continue
		}
		for _, entry := range toJSONSlice(result["apis"]) {
			if url, _ := entry["url"].(string); url != "" {
				endpoints = append(endpoints, url)
			}
		}
	}
	return endpoints
}

// collectVulnerabilities gathers every vulnerability entry recorded by any
// completed scan across all phases, duplicates included.
func collectVulnerabilities(wf *models.WorkflowResult) []models.JSON {
	var all []models.JSON
	for _, phase := range wf.Phases {
		for _, result := range phase.ScanResults {
			if result["status"] == "failed" {
				continue
			}
			all = append(all, toJSONSlice(result["vulnerabilities"])...)
		}
	}
	return all
}
