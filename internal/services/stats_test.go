package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

func TestExtractTargetStats(t *testing.T) {
	tests := []struct {
		name    string
		jobType models.JobType
		result  models.JSON
		want    models.JSON
	}{
		{
			name:    "subdomain scan",
			jobType: models.JobTypeSubdomainScan,
			result:  models.JSON{"total_count": 12, "alive_count": 4, "subdomains": []string{"a"}},
			want:    models.JSON{"subdomains": 12, "alive_subdomains": 4},
		},
		{
			name:    "live hosts scan",
			jobType: models.JobTypeLiveHostsScan,
			result:  models.JSON{"live_count": 7, "checked_count": 12},
			want:    models.JSON{"live_hosts": 7},
		},
		{
			name:    "port scan",
			jobType: models.JobTypePortScan,
			result:  models.JSON{"total_ports": 3},
			want:    models.JSON{"open_ports": 3},
		},
		{
			name:    "js files scan",
			jobType: models.JobTypeJSFilesScan,
			result:  models.JSON{"files_analyzed": 5, "secrets_found": 1},
			want:    models.JSON{"js_files": 5, "js_secrets": 1},
		},
		{
			name:    "api discovery",
			jobType: models.JobTypeAPIDiscovery,
			result:  models.JSON{"total_endpoints": 9, "api_vulnerability_count": 2},
			want:    models.JSON{"api_endpoints": 9, "api_vulnerabilities": 2},
		},
		{
			name:    "vulnerability scan",
			jobType: models.JobTypeVulnerabilityScan,
			result:  models.JSON{"findings_count": 3, "risk_score": 11},
			want:    models.JSON{"vulnerabilities": 3, "risk_score": 11},
		},
		{
			name:    "full scan carries no direct counters",
			jobType: models.JobTypeFullScan,
			result:  models.JSON{"steps_total": 7},
			want:    nil,
		},
		{
			name:    "missing keys yield nothing",
			jobType: models.JobTypePortScan,
			result:  models.JSON{},
			want:    nil,
		},
		{
			name:    "nil result",
			jobType: models.JobTypePortScan,
			result:  nil,
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractTargetStats(tt.jobType, tt.result))
		})
	}
}

func TestCountCriticalFindings(t *testing.T) {
	result := models.JSON{
		"vulnerabilities": []models.JSON{
			{"severity": "critical"},
			{"severity": "high"},
		},
		"api_vulnerabilities": []interface{}{
			map[string]interface{}{"severity": "critical"},
			"not a finding map",
		},
	}
	assert.Equal(t, 2, countCriticalFindings(result))
}

func TestCountCriticalFindingsNestedScans(t *testing.T) {
	result := models.JSON{
		"scans": models.JSON{
			"vulnerability_scan": models.JSON{
				"vulnerabilities": []models.JSON{{"severity": "critical"}},
			},
			"api_discovery": models.JSON{
				"api_vulnerabilities": []models.JSON{{"severity": "critical"}, {"severity": "medium"}},
			},
			"subdomain_scan": models.JSON{"total_count": 4},
		},
	}
	assert.Equal(t, 2, countCriticalFindings(result))
	assert.Equal(t, 0, countCriticalFindings(models.JSON{}))
}

func TestActiveScanRegistry(t *testing.T) {
	registry := NewActiveScanRegistry()

	_, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	registry.Register("job-a", cancelA)
	registry.Register("job-b", cancelB)
	assert.Equal(t, 2, registry.Len())
	assert.ElementsMatch(t, []string{"job-a", "job-b"}, registry.Active())

	assert.True(t, registry.Cancel("job-b"))
	assert.Error(t, ctxB.Err(), "cancel fires the handle")
	assert.False(t, registry.Cancel("job-b"), "a fired handle is removed")

	registry.Done("job-a")
	assert.Zero(t, registry.Len())
	assert.False(t, registry.Cancel("job-a"), "done removes without firing")
	cancelA()
}
