package scanners

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// Shared in-memory fakes for the asset stores and the command runner, so
// executor logic is tested without a database or real binaries.

type fakeSubdomainStore struct {
	subdomains []models.Subdomain
	upserted   []models.Subdomain
	liveness   map[string]map[string]interface{}
	findErr    error
}

func (s *fakeSubdomainStore) BulkUpsert(subdomains []models.Subdomain) error {
	s.upserted = append(s.upserted, subdomains...)
	return nil
}

func (s *fakeSubdomainStore) FindByTarget(targetID string) ([]models.Subdomain, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.subdomains, nil
}

func (s *fakeSubdomainStore) UpdateLiveness(id string, attrs map[string]interface{}) error {
	if s.liveness == nil {
		s.liveness = make(map[string]map[string]interface{})
	}
	s.liveness[id] = attrs
	return nil
}

type fakePortStore struct {
	upserted []models.Port
}

func (s *fakePortStore) BulkUpsert(ports []models.Port) error {
	s.upserted = append(s.upserted, ports...)
	return nil
}

func (s *fakePortStore) FindBySubdomain(subdomainID string) ([]models.Port, error) {
	return nil, nil
}

type fakeDirectoryStore struct {
	upserted []models.Directory
}

func (s *fakeDirectoryStore) BulkUpsert(directories []models.Directory) error {
	s.upserted = append(s.upserted, directories...)
	return nil
}

func (s *fakeDirectoryStore) FindBySubdomain(subdomainID string) ([]models.Directory, error) {
	return nil, nil
}

type fakeVulnerabilityStore struct {
	created []models.Vulnerability
}

func (s *fakeVulnerabilityStore) BulkCreate(vulnerabilities []models.Vulnerability) error {
	s.created = append(s.created, vulnerabilities...)
	return nil
}

func (s *fakeVulnerabilityStore) CountByTargetAndSeverity(targetID, severity string) (int64, error) {
	count := int64(0)
	for _, vuln := range s.created {
		if vuln.TargetID == targetID && vuln.Severity == severity {
			count++
		}
	}
	return count, nil
}

func newFakeStores() (Stores, *fakeSubdomainStore, *fakePortStore, *fakeVulnerabilityStore) {
	subs := &fakeSubdomainStore{}
	ports := &fakePortStore{}
	vulns := &fakeVulnerabilityStore{}
	stores := Stores{
		Subdomains:      subs,
		Ports:           ports,
		Directories:     &fakeDirectoryStore{},
		Vulnerabilities: vulns,
	}
	return stores, subs, ports, vulns
}

type fakeRunner struct {
	installed map[string]bool
	run       func(command string, args []string) ([]byte, error)
	calls     [][]string
}

func (r *fakeRunner) Run(ctx context.Context, command string, args []string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{command}, args...))
	if r.run != nil {
		return r.run(command, args)
	}
	return nil, fmt.Errorf("%s: no output configured", command)
}

func (r *fakeRunner) Installed(command string) bool {
	return r.installed[command]
}

func newTestScan(domain string, stores Stores, run *fakeRunner) *ScanContext {
	return &ScanContext{
		Job:    &models.ScanJob{ID: "job-1", TargetID: "target-1", Config: models.JSON{}},
		Target: &models.Target{ID: "target-1", Domain: domain, OrganizationID: "org-1"},
		Settings: &config.ScanSettings{
			BatchSize:     4,
			HTTPTimeout:   2 * time.Second,
			ToolTimeout:   5 * time.Second,
			DNSResolver:   "127.0.0.1:1",
			PortProfile:   "top100",
			ScanTechnique: "auto",
		},
		Stores: stores,
		Runner: run,
		Client: &http.Client{Timeout: 2 * time.Second},
		Logger: logger.NewLogger(logrus.ErrorLevel),
	}
}
