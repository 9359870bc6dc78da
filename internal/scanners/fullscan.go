package scanners

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// fullScanSequence is the fixed execution order for a full scan. Later scans
// read assets persisted by earlier ones, so the order matters.
var fullScanSequence = []models.JobType{
	models.JobTypeSubdomainScan,
	models.JobTypeLiveHostsScan,
	models.JobTypePortScan,
	models.JobTypeContentDiscovery,
	models.JobTypeJSFilesScan,
	models.JobTypeAPIDiscovery,
	models.JobTypeVulnerabilityScan,
}

// FullScanner runs every individual scan type sequentially against one target
// and nests the outputs under a single summary. A failed step is recorded and
// the sequence continues.
type FullScanner struct {
	registry *Registry
}

func NewFullScanner(registry *Registry) *FullScanner {
	return &FullScanner{registry: registry}
}

func (s *FullScanner) Type() models.JobType {
	return models.JobTypeFullScan
}

func (s *FullScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	start := time.Now()
	results := models.JSON{}
	failures := 0

	for i, jobType := range fullScanSequence {
		if ctx.Err() != nil {
			break
		}

		executor, ok := s.registry.Get(jobType)
		if !ok {
			continue
		}

		// Scale each step's progress into its slice of the whole
		stepBase := i * 100 / len(fullScanSequence)
		stepSpan := 100 / len(fullScanSequence)
		stepScan := *scan
		stepScan.Progress = func(pct int) {
			scan.ReportProgress(stepBase + pct*stepSpan/100)
		}

		result, err := executor.Run(ctx, &stepScan)
		if err != nil {
			failures++
			scan.Logger.WithError(err).WithFields(logrus.Fields(logger.Fields{
				"scan_type": jobType,
			})).Warn("Full scan step failed, continuing")
			results[string(jobType)] = models.JSON{
				"status": "failed",
				"error":  err.Error(),
			}
			continue
		}
		results[string(jobType)] = result
	}

	return models.JSON{
		"scans":            results,
		"steps_total":      len(fullScanSequence),
		"steps_failed":     failures,
		"duration_seconds": time.Since(start).Seconds(),
	}, nil
}
