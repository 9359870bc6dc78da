package scanners

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// portProfiles maps a named profile to nmap port selection arguments
var portProfiles = map[string][]string{
	"top100":  {"--top-ports", "100"},
	"top1000": {"--top-ports", "1000"},
	"web":     {"-p", "80,443,8000,8080,8443,8888,3000,5000"},
	"full":    {"-p-"},
}

// PortScanner wraps nmap. SYN scan is preferred; a permission failure falls
// back to a TCP connect scan so unprivileged runs still produce results.
type PortScanner struct{}

func NewPortScanner() *PortScanner {
	return &PortScanner{}
}

func (s *PortScanner) Type() models.JobType {
	return models.JobTypePortScan
}

// portFinding is one parsed open-port tuple
type portFinding struct {
	Host     string
	Port     int
	Protocol string
	State    string
	Service  string
	Version  string
}

func (s *PortScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	if !scan.Runner.Installed("nmap") {
		return nil, apperrors.NewExecutionError(string(s.Type()), apperrors.ErrToolNotInstalled)
	}

	subdomains, err := scan.Stores.Subdomains.FindByTarget(scan.Target.ID)
	if err != nil {
		return nil, apperrors.NewExecutionError(string(s.Type()), fmt.Errorf("load subdomains: %w", err))
	}

	hosts := make([]string, 0, len(subdomains)+1)
	idsByHost := make(map[string]string, len(subdomains))
	for _, sub := range subdomains {
		hosts = append(hosts, sub.Subdomain)
		idsByHost[sub.Subdomain] = sub.ID
	}
	if len(hosts) == 0 {
		hosts = []string{scan.Target.Domain}
	}

	profile := scan.StringOption("port_profile", scan.Settings.PortProfile)
	profileArgs, ok := portProfiles[profile]
	if !ok {
		profileArgs = portProfiles["top1000"]
	}

	technique := scan.StringOption("scan_technique", scan.Settings.ScanTechnique)
	scan.ReportProgress(10)

	output, techniqueUsed, err := s.runNmap(ctx, scan, hosts, profileArgs, technique)
	if err != nil {
		return nil, apperrors.NewExecutionError(string(s.Type()), err)
	}

	scan.ReportProgress(70)

	findings := parseNmapOutput(output)

	records := make([]models.Port, 0, len(findings))
	for _, finding := range findings {
		subID, known := idsByHost[finding.Host]
		if !known {
			continue
		}
		records = append(records, models.Port{
			SubdomainID: subID,
			Port:        finding.Port,
			Protocol:    finding.Protocol,
			State:       finding.State,
			Service:     finding.Service,
			Version:     finding.Version,
		})
	}
	if err := scan.Stores.Ports.BulkUpsert(records); err != nil {
		return nil, apperrors.NewExecutionError(string(s.Type()), fmt.Errorf("persist ports: %w", err))
	}

	scan.ReportProgress(95)

	openPorts := make([]models.JSON, 0, len(findings))
	for _, finding := range findings {
		openPorts = append(openPorts, models.JSON{
			"host":     finding.Host,
			"port":     finding.Port,
			"protocol": finding.Protocol,
			"state":    finding.State,
			"service":  finding.Service,
			"version":  finding.Version,
		})
	}

	return models.JSON{
		"open_ports":     openPorts,
		"total_ports":    len(findings),
		"scanned_hosts":  len(hosts),
		"port_profile":   profile,
		"scan_technique": techniqueUsed,
	}, nil
}

// runNmap executes nmap with the selected technique, falling back from SYN to
// connect scan when the process lacks raw socket privileges.
func (s *PortScanner) runNmap(ctx context.Context, scan *ScanContext, hosts, profileArgs []string, technique string) ([]byte, string, error) {
	techniques := []string{"-sS", "-sT"}
	switch technique {
	case "syn":
		techniques = []string{"-sS"}
	case "connect":
		techniques = []string{"-sT"}
	}

	var lastErr error
	for _, flag := range techniques {
		args := append([]string{flag, "-sV", "-oG", "-"}, profileArgs...)
		args = append(args, hosts...)

		toolCtx, cancel := context.WithTimeout(ctx, scan.ToolTimeout())
		output, err := scan.Runner.Run(toolCtx, "nmap", args)
		cancel()
		if err == nil {
			return output, techniqueName(flag), nil
		}

		lastErr = err
		if flag == "-sS" && isPermissionFailure(err) {
			scan.Logger.WithFields(logger.Fields{"technique": "syn"}).
				Warn("SYN scan requires raw socket privileges, falling back to connect scan")
			continue
		}
		break
	}
	return nil, "", lastErr
}

func techniqueName(flag string) string {
	if flag == "-sS" {
		return "syn"
	}
	return "connect"
}

func isPermissionFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "requires root privileges") ||
		strings.Contains(msg, "operation not permitted") ||
		strings.Contains(msg, "permission denied")
}

// parseNmapOutput parses grepable (-oG) output into open-port tuples
func parseNmapOutput(output []byte) []portFinding {
	var findings []portFinding

	for _, line := range strings.Split(string(output), "\n") {
		if !strings.HasPrefix(line, "Host:") || !strings.Contains(line, "Ports:") {
			continue
		}

		host := parseGrepableHost(line)
		portsSection := line[strings.Index(line, "Ports:")+len("Ports:"):]
		if idx := strings.Index(portsSection, "\tIgnored"); idx >= 0 {
			portsSection = portsSection[:idx]
		}

		for _, entry := range strings.Split(portsSection, ",") {
			fields := strings.Split(strings.TrimSpace(entry), "/")
			if len(fields) < 7 {
				continue
			}
			portNum, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			state := fields[1]
			if state != "open" {
				continue
			}
			findings = append(findings, portFinding{
				Host:     host,
				Port:     portNum,
				Protocol: fields[2],
				State:    state,
				Service:  fields[4],
				Version:  fields[6],
			})
		}
	}
	return findings
}

// parseGrepableHost pulls the hostname (or address) out of a grepable line:
// "Host: 93.184.216.34 (example.com)\tPorts: ..."
func parseGrepableHost(line string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "Host:"))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 1 && strings.HasPrefix(fields[1], "(") && fields[1] != "()" {
		return strings.Trim(fields[1], "()")
	}
	return fields[0]
}
