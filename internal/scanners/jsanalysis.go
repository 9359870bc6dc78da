package scanners

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

// commonJSPaths are probed even when the crawl finds nothing
var commonJSPaths = []string{
	"/js/app.js", "/js/main.js", "/js/bundle.js", "/static/js/main.js",
	"/assets/app.js", "/assets/js/app.js", "/main.js", "/app.js",
	"/bundle.js", "/js/config.js", "/static/js/runtime.js",
}

// dangerousJSPatterns map a vulnerability indicator to its severity weight
var dangerousJSPatterns = []struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  int
}{
	{"eval_usage", regexp.MustCompile(`\beval\s*\(`), 8},
	{"inner_html", regexp.MustCompile(`\.innerHTML\s*=`), 5},
	{"document_write", regexp.MustCompile(`document\.write\s*\(`), 5},
	{"outer_html", regexp.MustCompile(`\.outerHTML\s*=`), 4},
	{"insert_adjacent_html", regexp.MustCompile(`insertAdjacentHTML\s*\(`), 4},
	{"function_constructor", regexp.MustCompile(`new\s+Function\s*\(`), 7},
	{"settimeout_string", regexp.MustCompile(`setTimeout\s*\(\s*["']`), 4},
	{"location_assign", regexp.MustCompile(`(?:location\.href|location\.assign)\s*=?\s*\(?`), 2},
	{"postmessage_wildcard", regexp.MustCompile(`postMessage\s*\([^)]+,\s*["']\*["']`), 6},
	{"prototype_pollution", regexp.MustCompile(`(?:__proto__|Object\.assign\s*\(\s*[a-zA-Z_$][\w$]*\.prototype|constructor\s*\[\s*["']prototype["']\s*\])`), 7},
}

// secretPatterns detect embedded credentials; matches that look like
// placeholders are filtered out before reporting.
var secretPatterns = []struct {
	Name    string
	Pattern *regexp.Regexp
}{
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"google_api_key", regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)},
	{"generic_api_key", regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)["'\s:=]+["']([a-zA-Z0-9_\-]{16,64})["']`)},
	{"bearer_token", regexp.MustCompile(`(?i)authorization["'\s:=]+["']Bearer\s+([a-zA-Z0-9_\-.]{20,})["']`)},
	{"generic_secret", regexp.MustCompile(`(?i)(?:secret|password|passwd)["'\s:=]+["']([a-zA-Z0-9_\-!@#%^&*]{8,64})["']`)},
	{"private_key", regexp.MustCompile(`-----BEGIN (?:RSA |EC )?PRIVATE KEY-----`)},
}

var placeholderValues = []string{
	"your_api_key", "your-api-key", "changeme", "example", "xxxxxx",
	"placeholder", "dummy", "test", "sample", "<api_key>", "insert_key_here",
	"password123", "your_secret",
}

// knownLibraryPattern extracts third-party library names with versions
var knownLibraryPattern = regexp.MustCompile(`(?i)(jquery|angular|react|vue|lodash|moment|bootstrap|d3)[.\s/-]v?(\d+\.\d+(?:\.\d+)?)`)

var sourceMapPattern = regexp.MustCompile(`//#\s*sourceMappingURL=([^\s]+)`)

// JSAnalysisScanner downloads the target's JavaScript and pattern-matches it
// for dangerous sinks, embedded secrets, known libraries and
// pollution-prone constructs, producing a per-file and overall risk score.
type JSAnalysisScanner struct{}

func NewJSAnalysisScanner() *JSAnalysisScanner {
	return &JSAnalysisScanner{}
}

func (s *JSAnalysisScanner) Type() models.JobType {
	return models.JobTypeJSFilesScan
}

func (s *JSAnalysisScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	base := "https://" + scan.Target.Domain

	maxFiles := scan.IntOption("max_js_files", scan.Settings.MaxJSFiles)
	maxSize := scan.Settings.MaxJSFileSize
	if maxSize <= 0 {
		maxSize = 2 * 1024 * 1024
	}

	scan.ReportProgress(5)
	urls := s.discoverJSFiles(ctx, scan, base, maxFiles)
	scan.ReportProgress(25)

	var fileReports []models.JSON
	totalRisk := 0
	secretCount := 0

	for i, jsURL := range urls {
		if ctx.Err() != nil {
			break
		}

		body, status, err := fetchBody(ctx, scan.Client, jsURL, maxSize)
		if err != nil || status != 200 || body == "" {
			continue
		}

		report := analyzeJSFile(jsURL, body)
		fileRisk, _ := report["risk_score"].(int)
		totalRisk += fileRisk
		if secrets, ok := report["secrets"].([]models.JSON); ok {
			secretCount += len(secrets)
		}
		fileReports = append(fileReports, report)

		// 25..90 across the downloads
		scan.ReportProgress(25 + ((i + 1) * 65 / len(urls)))
	}

	riskLevel := "low"
	switch {
	case totalRisk >= 40 || secretCount > 0:
		riskLevel = "high"
	case totalRisk >= 15:
		riskLevel = "medium"
	}

	return models.JSON{
		"files_discovered": len(urls),
		"files_analyzed":   len(fileReports),
		"files":            fileReports,
		"total_risk_score": totalRisk,
		"risk_level":       riskLevel,
		"secrets_found":    secretCount,
	}, nil
}

// discoverJSFiles collects candidate JS URLs from the landing page crawl,
// common path probes, previously discovered directories, build-tool naming
// conventions and sourcemap references.
func (s *JSAnalysisScanner) discoverJSFiles(ctx context.Context, scan *ScanContext, base string, maxFiles int) []string {
	seen := make(map[string]struct{})
	var urls []string
	add := func(jsURL string) {
		if len(urls) >= maxFiles {
			return
		}
		if _, dup := seen[jsURL]; dup {
			return
		}
		seen[jsURL] = struct{}{}
		urls = append(urls, jsURL)
	}

	// Page crawl
	if body, status, err := fetchBody(ctx, scan.Client, base, 1024*1024); err == nil && status < 400 {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
				src, _ := sel.Attr("src")
				switch {
				case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
					if strings.Contains(src, scan.Target.Domain) {
						add(src)
					}
				case strings.HasPrefix(src, "/"):
					add(base + src)
				}
			})
		}
	}

	// Common paths
	for _, path := range commonJSPaths {
		add(base + path)
	}

	// Previously discovered directories that look like scripts
	if subdomains, err := scan.Stores.Subdomains.FindByTarget(scan.Target.ID); err == nil {
		for _, sub := range subdomains {
			dirs, err := scan.Stores.Directories.FindBySubdomain(sub.ID)
			if err != nil {
				continue
			}
			for _, dir := range dirs {
				if strings.HasSuffix(dir.Path, ".js") {
					add("https://" + sub.Subdomain + dir.Path)
				}
			}
		}
	}

	// Sourcemap references from already-collected files
	for _, jsURL := range append([]string(nil), urls...) {
		body, status, err := fetchBody(ctx, scan.Client, jsURL, 256*1024)
		if err != nil || status != 200 {
			continue
		}
		if match := sourceMapPattern.FindStringSubmatch(body); match != nil {
			mapURL := match[1]
			if !strings.HasPrefix(mapURL, "http") {
				if idx := strings.LastIndex(jsURL, "/"); idx >= 0 {
					mapURL = jsURL[:idx+1] + mapURL
				}
			}
			add(mapURL)
		}
		break // one sourcemap probe is enough for discovery
	}

	return urls
}

// analyzeJSFile runs every pattern battery against one file's contents
func analyzeJSFile(jsURL, body string) models.JSON {
	risk := 0

	var indicators []models.JSON
	for _, pattern := range dangerousJSPatterns {
		matches := pattern.Pattern.FindAllString(body, 10)
		if len(matches) == 0 {
			continue
		}
		risk += pattern.Weight
		indicators = append(indicators, models.JSON{
			"type":        pattern.Name,
			"occurrences": len(matches),
			"weight":      pattern.Weight,
		})
	}

	var secrets []models.JSON
	for _, pattern := range secretPatterns {
		for _, match := range pattern.Pattern.FindAllString(body, 5) {
			if isPlaceholderSecret(match) {
				continue
			}
			risk += 10
			secrets = append(secrets, models.JSON{
				"type":    pattern.Name,
				"preview": redactSecret(match),
			})
		}
	}

	var libraries []models.JSON
	for _, match := range knownLibraryPattern.FindAllStringSubmatch(body, 10) {
		libraries = append(libraries, models.JSON{
			"name":    strings.ToLower(match[1]),
			"version": match[2],
		})
	}

	return models.JSON{
		"url":        jsURL,
		"size":       len(body),
		"indicators": indicators,
		"secrets":    secrets,
		"libraries":  libraries,
		"risk_score": risk,
	}
}

func isPlaceholderSecret(match string) bool {
	lower := strings.ToLower(match)
	for _, placeholder := range placeholderValues {
		if strings.Contains(lower, placeholder) {
			return true
		}
	}
	return false
}

// redactSecret keeps enough of a match to locate it without reproducing it
func redactSecret(match string) string {
	if len(match) <= 8 {
		return "********"
	}
	return match[:4] + "..." + match[len(match)-4:]
}
