package scanners

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
)

func TestVulnerabilityScanThreeMissingHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// X-Frame-Options, X-Content-Type-Options and HSTS are omitted
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stores, _, _, vulns := newFakeStores()
	scan := newTestScan("example.com", stores, &fakeRunner{})
	scan.Job.Config = models.JSON{"url": server.URL}

	result, err := NewVulnerabilityScanner().Run(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, 3, result["findings_count"])
	assert.Equal(t, 11, result["risk_score"])

	severities := map[string]string{}
	for _, finding := range result["vulnerabilities"].([]models.JSON) {
		severities[finding["header"].(string)] = finding["severity"].(string)
	}
	assert.Equal(t, map[string]string{
		"X-Frame-Options":           "medium",
		"X-Content-Type-Options":    "low",
		"Strict-Transport-Security": "medium",
	}, severities)

	assert.Len(t, vulns.created, 3)
	for _, record := range vulns.created {
		assert.Equal(t, "missing_security_header", record.Type)
		assert.Equal(t, "target-1", record.TargetID)
	}
}

func TestVulnerabilityScanAllHeadersPresent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	stores, _, _, vulns := newFakeStores()
	scan := newTestScan("example.com", stores, &fakeRunner{})
	scan.Job.Config = models.JSON{"url": server.URL}

	result, err := NewVulnerabilityScanner().Run(context.Background(), scan)
	require.NoError(t, err)

	assert.Equal(t, 0, result["findings_count"])
	assert.Equal(t, 0, result["risk_score"])
	assert.Empty(t, vulns.created)
}

func TestCheckSecurityHeadersEmpty(t *testing.T) {
	findings, riskScore := CheckSecurityHeaders(http.Header{})

	assert.Len(t, findings, 5)
	assert.Equal(t, 16, riskScore)
}
