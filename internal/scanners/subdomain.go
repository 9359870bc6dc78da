package scanners

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// enumerationTools are tried in order; every installed one contributes and
// the outputs are merged. With none installed the scanner degrades to a DNS
// probe of commonSubdomainNames instead of failing.
var enumerationTools = []struct {
	Name string
	Args func(domain string) []string
}{
	{Name: "subfinder", Args: func(domain string) []string { return []string{"-d", domain, "-silent"} }},
	{Name: "assetfinder", Args: func(domain string) []string { return []string{"--subs-only", domain} }},
}

// commonSubdomainNames is the fixed candidate list for the basic_dns fallback
var commonSubdomainNames = []string{
	"www", "mail", "ftp", "webmail", "smtp", "pop", "ns1", "ns2",
	"api", "dev", "staging", "test", "admin", "portal", "blog",
	"shop", "vpn", "m", "mobile", "secure", "app", "cdn", "static",
	"beta", "demo", "docs", "git", "jenkins", "grafana", "status",
}

// SubdomainScanner enumerates hostnames under the target domain
type SubdomainScanner struct{}

func NewSubdomainScanner() *SubdomainScanner {
	return &SubdomainScanner{}
}

func (s *SubdomainScanner) Type() models.JobType {
	return models.JobTypeSubdomainScan
}

func (s *SubdomainScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	domain := scan.Target.Domain
	scan.ReportProgress(5)

	discovered := make(map[string]struct{})
	var toolsUsed []string

	for _, tool := range enumerationTools {
		if !scan.Runner.Installed(tool.Name) {
			scan.Logger.WithFields(logger.Fields{"tool": tool.Name}).Debug("Enumeration tool not installed, skipping")
			continue
		}

		toolCtx, cancel := context.WithTimeout(ctx, scan.ToolTimeout())
		output, err := scan.Runner.Run(toolCtx, tool.Name, tool.Args(domain))
		cancel()
		if err != nil {
			// One tool failing degrades coverage, it does not fail the scan
			scan.Logger.WithError(err).WithFields(logrus.Fields(logger.Fields{"tool": tool.Name})).Warn("Enumeration tool failed")
			continue
		}

		count := 0
		for _, line := range strings.Split(string(output), "\n") {
			host := normalizeHostname(line)
			if host == "" || !isSubdomainOf(host, domain) {
				continue
			}
			discovered[host] = struct{}{}
			count++
		}
		toolsUsed = append(toolsUsed, tool.Name)
		scan.Logger.WithFields(logger.Fields{"tool": tool.Name, "found": count}).Info("Enumeration tool finished")
	}

	scan.ReportProgress(40)

	// No tool produced anything usable: probe the fixed candidate list
	if len(toolsUsed) == 0 {
		resolver := scan.StringOption("dns_resolver", scan.Settings.DNSResolver)
		for _, name := range commonSubdomainNames {
			if ctx.Err() != nil {
				return nil, apperrors.NewExecutionError(string(s.Type()), ctx.Err())
			}
			candidate := name + "." + domain
			if _, ok := resolveA(ctx, candidate, resolver, scan.HTTPTimeout()); ok {
				discovered[candidate] = struct{}{}
			}
		}
		toolsUsed = []string{"basic_dns"}
	}

	subdomains := make([]string, 0, len(discovered))
	for host := range discovered {
		subdomains = append(subdomains, host)
	}
	sort.Strings(subdomains)

	// The discovery monitor tails this file and alerts on first-seen hosts
	if dir := scan.StringOption("work_dir", workDir(scan)); dir != "" {
		if err := writeDiscoveryFile(dir, scan.Job.ID, subdomains); err != nil {
			scan.Logger.WithError(err).Warn("Discovery file write failed")
		}
	}

	scan.ReportProgress(60)

	// Optional lightweight liveness pass over what was found
	var alive []string
	if scan.BoolOption("verify_liveness", scan.Settings.VerifyLiveness) {
		alive = s.verifyLiveness(ctx, scan, subdomains)
	}
	scan.ReportProgress(85)

	records := make([]models.Subdomain, 0, len(subdomains))
	aliveSet := make(map[string]struct{}, len(alive))
	for _, host := range alive {
		aliveSet[host] = struct{}{}
	}
	for _, host := range subdomains {
		status := "discovered"
		if _, ok := aliveSet[host]; ok {
			status = "live"
		}
		records = append(records, models.Subdomain{
			TargetID:  scan.Target.ID,
			Subdomain: host,
			Status:    status,
		})
	}
	if err := scan.Stores.Subdomains.BulkUpsert(records); err != nil {
		return nil, apperrors.NewExecutionError(string(s.Type()), fmt.Errorf("persist subdomains: %w", err))
	}

	scan.ReportProgress(95)

	return models.JSON{
		"subdomains":       subdomains,
		"alive_subdomains": alive,
		"total_count":      len(subdomains),
		"alive_count":      len(alive),
		"tools_used":       toolsUsed,
	}, nil
}

// verifyLiveness probes each hostname over HTTPS then HTTP in bounded batches
func (s *SubdomainScanner) verifyLiveness(ctx context.Context, scan *ScanContext, subdomains []string) []string {
	alive := make([]string, 0, len(subdomains))
	batchSize := scan.BatchSize()

	for start := 0; start < len(subdomains); start += batchSize {
		end := start + batchSize
		if end > len(subdomains) {
			end = len(subdomains)
		}

		results := make([]bool, end-start)
		group, groupCtx := errgroup.WithContext(ctx)
		for i, host := range subdomains[start:end] {
			i, host := i, host
			group.Go(func() error {
				probe := probeURL(groupCtx, scan.Client, "https://"+host)
				if !probe.Alive {
					probe = probeURL(groupCtx, scan.Client, "http://"+host)
				}
				results[i] = probe.Alive
				return nil
			})
		}
		// Probes never return errors; Wait is the batch settle barrier
		_ = group.Wait()

		for i, ok := range results {
			if ok {
				alive = append(alive, subdomains[start+i])
			}
		}
	}
	return alive
}

func workDir(scan *ScanContext) string {
	if scan.Settings != nil {
		return scan.Settings.WorkDir
	}
	return ""
}

// writeDiscoveryFile appends hostnames to the job's discovery file, one per
// line. Appending keeps earlier lines stable for the tailing monitor.
func writeDiscoveryFile(dir, jobID string, hosts []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, jobID+"_subdomains.txt")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	for _, host := range hosts {
		if _, err := fmt.Fprintln(file, host); err != nil {
			return err
		}
	}
	return nil
}

// normalizeHostname trims tool output noise down to a bare hostname
func normalizeHostname(line string) string {
	host := strings.TrimSpace(strings.ToLower(line))
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, ".")
	if idx := strings.IndexAny(host, "/:"); idx >= 0 {
		host = host[:idx]
	}
	if host == "" || strings.ContainsAny(host, " \t") || !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// isSubdomainOf reports whether host is the domain itself or a true
// label-suffix subdomain of it.
func isSubdomainOf(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
