package scanners

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
)

// contentFinding is one discovered path/endpoint with its classification
type contentFinding struct {
	Path        string
	ContentType string // endpoint | parameter | form | ajax | xss_sink
	Source      string // robots | sitemap | archive | js | html
}

var (
	jsEndpointPattern = regexp.MustCompile(`["'](/[a-zA-Z0-9_\-./]{2,}?)["']`)
	jsAjaxPattern     = regexp.MustCompile(`(?:fetch|axios\.(?:get|post|put|delete)|\$\.(?:get|post|ajax))\s*\(\s*["']([^"']+)["']`)
	xssSinkPattern    = regexp.MustCompile(`(?:innerHTML|outerHTML|document\.write|insertAdjacentHTML)\s*[=(]`)
)

// ContentDiscoveryScanner combines passive techniques - robots.txt, sitemaps,
// historical archives, static JS analysis and HTML extraction - into one
// classified finding set.
type ContentDiscoveryScanner struct{}

func NewContentDiscoveryScanner() *ContentDiscoveryScanner {
	return &ContentDiscoveryScanner{}
}

func (s *ContentDiscoveryScanner) Type() models.JobType {
	return models.JobTypeContentDiscovery
}

func (s *ContentDiscoveryScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	domain := scan.Target.Domain
	base := "https://" + domain

	seen := make(map[string]struct{})
	var findings []contentFinding
	add := func(f contentFinding) {
		if f.Path == "" {
			return
		}
		key := f.Path + "|" + f.ContentType
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		findings = append(findings, f)
	}

	scan.ReportProgress(10)
	for _, path := range s.fromRobots(ctx, scan, base) {
		add(contentFinding{Path: path, ContentType: "endpoint", Source: "robots"})
	}

	scan.ReportProgress(30)
	for _, path := range s.fromSitemap(ctx, scan, base) {
		add(contentFinding{Path: path, ContentType: "endpoint", Source: "sitemap"})
	}

	scan.ReportProgress(50)
	if scan.BoolOption("archive_lookup", scan.Settings.ArchiveLookup) {
		for _, finding := range s.fromArchive(ctx, scan, domain) {
			add(finding)
		}
	}

	scan.ReportProgress(70)
	for _, finding := range s.fromHTML(ctx, scan, base) {
		add(finding)
	}

	scan.ReportProgress(90)

	// Persist under the root subdomain record when one exists
	subdomains, err := scan.Stores.Subdomains.FindByTarget(scan.Target.ID)
	if err == nil {
		var rootID string
		for _, sub := range subdomains {
			if sub.Subdomain == domain || sub.Subdomain == "www."+domain {
				rootID = sub.ID
				break
			}
		}
		if rootID != "" {
			records := make([]models.Directory, 0, len(findings))
			for _, finding := range findings {
				records = append(records, models.Directory{
					SubdomainID: rootID,
					Path:        finding.Path,
					ContentType: finding.ContentType,
					Source:      finding.Source,
				})
			}
			if err := scan.Stores.Directories.BulkUpsert(records); err != nil {
				return nil, apperrors.NewExecutionError(string(s.Type()), fmt.Errorf("persist content findings: %w", err))
			}
		}
	}

	byType := map[string]int{}
	entries := make([]models.JSON, 0, len(findings))
	for _, finding := range findings {
		byType[finding.ContentType]++
		entries = append(entries, models.JSON{
			"path":         finding.Path,
			"content_type": finding.ContentType,
			"source":       finding.Source,
		})
	}

	return models.JSON{
		"discovered_content": entries,
		"total_count":        len(findings),
		"by_type":            byType,
	}, nil
}

// fromRobots parses Allow/Disallow/Sitemap directives
func (s *ContentDiscoveryScanner) fromRobots(ctx context.Context, scan *ScanContext, base string) []string {
	body, status, err := fetchBody(ctx, scan.Client, base+"/robots.txt", 256*1024)
	if err != nil || status != 200 {
		return nil
	}

	var paths []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, directive := range []string{"disallow:", "allow:"} {
			if strings.HasPrefix(lower, directive) {
				path := strings.TrimSpace(line[len(directive):])
				path = strings.TrimSuffix(path, "*")
				if path != "" && path != "/" {
					paths = append(paths, path)
				}
			}
		}
	}
	return paths
}

type sitemapURLSet struct {
	URLs []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// fromSitemap extracts URL paths from sitemap.xml
func (s *ContentDiscoveryScanner) fromSitemap(ctx context.Context, scan *ScanContext, base string) []string {
	body, status, err := fetchBody(ctx, scan.Client, base+"/sitemap.xml", 1024*1024)
	if err != nil || status != 200 {
		return nil
	}

	var urlset sitemapURLSet
	if err := xml.Unmarshal([]byte(body), &urlset); err != nil {
		return nil
	}

	var paths []string
	for _, entry := range urlset.URLs {
		if parsed, err := url.Parse(strings.TrimSpace(entry.Loc)); err == nil && parsed.Path != "" {
			paths = append(paths, parsed.Path)
		}
	}
	return paths
}

// fromArchive queries the Wayback CDX index for historical URLs
func (s *ContentDiscoveryScanner) fromArchive(ctx context.Context, scan *ScanContext, domain string) []contentFinding {
	cdxURL := fmt.Sprintf(
		"https://web.archive.org/cdx/search/cdx?url=%s/*&output=text&fl=original&collapse=urlkey&limit=500",
		url.QueryEscape(domain))
	body, status, err := fetchBody(ctx, scan.Client, cdxURL, 2*1024*1024)
	if err != nil || status != 200 {
		return nil
	}

	var findings []contentFinding
	for _, line := range strings.Split(body, "\n") {
		parsed, err := url.Parse(strings.TrimSpace(line))
		if err != nil || parsed.Path == "" || parsed.Path == "/" {
			continue
		}
		contentType := "endpoint"
		if parsed.RawQuery != "" {
			contentType = "parameter"
		}
		findings = append(findings, contentFinding{
			Path:        parsed.Path,
			ContentType: contentType,
			Source:      "archive",
		})
	}
	return findings
}

// fromHTML fetches the landing page and extracts forms, links, inline AJAX
// calls and XSS-prone sinks, then statically analyzes referenced scripts.
func (s *ContentDiscoveryScanner) fromHTML(ctx context.Context, scan *ScanContext, base string) []contentFinding {
	body, status, err := fetchBody(ctx, scan.Client, base, 1024*1024)
	if err != nil || status >= 400 {
		return nil
	}

	var findings []contentFinding

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		doc.Find("form[action]").Each(func(_ int, sel *goquery.Selection) {
			if action, ok := sel.Attr("action"); ok && strings.HasPrefix(action, "/") {
				findings = append(findings, contentFinding{Path: action, ContentType: "form", Source: "html"})
			}
		})
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok && strings.HasPrefix(href, "/") && len(href) > 1 {
				findings = append(findings, contentFinding{Path: href, ContentType: "endpoint", Source: "html"})
			}
		})

		// Bounded static pass over same-origin scripts
		var scripts []string
		doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
			if src, ok := sel.Attr("src"); ok && strings.HasPrefix(src, "/") && len(scripts) < 10 {
				scripts = append(scripts, src)
			}
		})
		for _, src := range scripts {
			findings = append(findings, s.fromScript(ctx, scan, base+src)...)
		}
	}

	findings = append(findings, analyzeInlineJS(body)...)
	return findings
}

func (s *ContentDiscoveryScanner) fromScript(ctx context.Context, scan *ScanContext, scriptURL string) []contentFinding {
	body, status, err := fetchBody(ctx, scan.Client, scriptURL, 512*1024)
	if err != nil || status != 200 {
		return nil
	}
	return analyzeInlineJS(body)
}

// analyzeInlineJS pattern-matches script text for endpoints, AJAX calls and sinks
func analyzeInlineJS(body string) []contentFinding {
	var findings []contentFinding

	for _, match := range jsAjaxPattern.FindAllStringSubmatch(body, 50) {
		findings = append(findings, contentFinding{Path: match[1], ContentType: "ajax", Source: "js"})
	}
	for _, match := range jsEndpointPattern.FindAllStringSubmatch(body, 100) {
		path := match[1]
		if strings.Contains(path, ".") && !strings.Contains(path, "/api") {
			continue // static asset reference, not an endpoint
		}
		findings = append(findings, contentFinding{Path: path, ContentType: "endpoint", Source: "js"})
	}
	if xssSinkPattern.MatchString(body) {
		findings = append(findings, contentFinding{Path: "inline-script", ContentType: "xss_sink", Source: "js"})
	}
	return findings
}
