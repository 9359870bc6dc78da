package scanners

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	apperrors "github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/errors"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// LiveHostsScanner resolves and probes every known subdomain of the target,
// recording liveness, addresses, titles and HTTP status codes.
type LiveHostsScanner struct{}

func NewLiveHostsScanner() *LiveHostsScanner {
	return &LiveHostsScanner{}
}

func (s *LiveHostsScanner) Type() models.JobType {
	return models.JobTypeLiveHostsScan
}

type hostCheck struct {
	Subdomain  models.Subdomain
	IPAddress  string
	Resolved   bool
	Alive      bool
	Scheme     string
	StatusCode int
	Title      string
}

func (s *LiveHostsScanner) Run(ctx context.Context, scan *ScanContext) (models.JSON, error) {
	start := time.Now()

	subdomains, err := scan.Stores.Subdomains.FindByTarget(scan.Target.ID)
	if err != nil {
		return nil, apperrors.NewExecutionError(string(s.Type()), fmt.Errorf("load subdomains: %w", err))
	}

	// A single hostname can be pinned through the scan config
	if only := scan.StringOption("subdomain", ""); only != "" {
		filtered := subdomains[:0]
		for _, sub := range subdomains {
			if sub.Subdomain == only {
				filtered = append(filtered, sub)
			}
		}
		subdomains = filtered
	}

	if len(subdomains) == 0 {
		return nil, apperrors.NewExecutionError(string(s.Type()),
			fmt.Errorf("no subdomains found for target %s - run a subdomain scan first", scan.Target.Domain))
	}

	scan.ReportProgress(10)

	resolver := scan.StringOption("dns_resolver", scan.Settings.DNSResolver)
	batchSize := scan.BatchSize()
	checks := make([]hostCheck, len(subdomains))

	for batchStart := 0; batchStart < len(subdomains); batchStart += batchSize {
		batchEnd := batchStart + batchSize
		if batchEnd > len(subdomains) {
			batchEnd = len(subdomains)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for i := batchStart; i < batchEnd; i++ {
			i := i
			group.Go(func() error {
				checks[i] = s.checkHost(groupCtx, scan, subdomains[i], resolver)
				return nil
			})
		}
		// Settle barrier: the whole batch finishes before the next fires,
		// bounding simultaneous connections against the target
		_ = group.Wait()

		if ctx.Err() != nil {
			return nil, apperrors.NewExecutionError(string(s.Type()), ctx.Err())
		}

		// 10..85 across the batches
		progress := 10 + (batchEnd*75)/len(subdomains)
		scan.ReportProgress(progress)
	}

	liveCount := 0
	newlyLive := 0
	for _, check := range checks {
		if !check.Alive {
			continue
		}
		liveCount++
		if check.Subdomain.Status != "live" {
			newlyLive++
		}

		attrs := map[string]interface{}{
			"status":      "live",
			"ip_address":  check.IPAddress,
			"title":       check.Title,
			"http_status": check.StatusCode,
		}
		if err := scan.Stores.Subdomains.UpdateLiveness(check.Subdomain.ID, attrs); err != nil {
			scan.Logger.WithError(err).WithFields(logrus.Fields(logger.Fields{
				"subdomain": check.Subdomain.Subdomain,
			})).Warn("Failed to persist liveness update")
		}
	}

	scan.ReportProgress(95)

	duration := time.Since(start)
	successRate := float64(liveCount) / float64(len(checks)) * 100

	return models.JSON{
		"checked_count":    len(checks),
		"live_count":       liveCount,
		"newly_discovered": newlyLive,
		"success_rate":     successRate,
		"duration_seconds": duration.Seconds(),
		"live_hosts":       liveHostEntries(checks),
	}, nil
}

// checkHost resolves one hostname then probes HTTPS and HTTP
func (s *LiveHostsScanner) checkHost(ctx context.Context, scan *ScanContext, sub models.Subdomain, resolver string) hostCheck {
	check := hostCheck{Subdomain: sub}

	ip, ok := resolveA(ctx, sub.Subdomain, resolver, scan.HTTPTimeout())
	if !ok {
		return check
	}
	check.IPAddress = ip
	check.Resolved = true

	for _, scheme := range []string{"https", "http"} {
		probe := probeURL(ctx, scan.Client, scheme+"://"+sub.Subdomain)
		if probe.Alive {
			check.Alive = true
			check.Scheme = scheme
			check.StatusCode = probe.StatusCode
			check.Title = probe.Title
			break
		}
	}
	return check
}

func liveHostEntries(checks []hostCheck) []models.JSON {
	entries := make([]models.JSON, 0, len(checks))
	for _, check := range checks {
		if !check.Alive {
			continue
		}
		entries = append(entries, models.JSON{
			"host":        check.Subdomain.Subdomain,
			"ip_address":  check.IPAddress,
			"scheme":      check.Scheme,
			"http_status": check.StatusCode,
			"title":       check.Title,
		})
	}
	return entries
}
