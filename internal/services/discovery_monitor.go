package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/dao"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/notification"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// DiscoveryMonitor tails the per-job discovery files enumeration writes into
// the work directory, records first-seen hosts and pushes a notification for
// them. Write events are debounced; the file is re-read from the last offset
// on each pass.
type DiscoveryMonitor struct {
	subdomains dao.SubdomainDAO
	notifier   *notification.Client
	logger     *logger.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

func NewDiscoveryMonitor(subdomains dao.SubdomainDAO, notifier *notification.Client) *DiscoveryMonitor {
	return &DiscoveryMonitor{
		subdomains: subdomains,
		notifier:   notifier,
		logger:     logger.NewLogger(logrus.InfoLevel),
		known:      make(map[string]struct{}),
	}
}

// Prime seeds the first-seen set from already-persisted subdomains so a
// restarted monitor does not re-announce the whole asset inventory.
func (m *DiscoveryMonitor) Prime(targetID string) error {
	existing, err := m.subdomains.FindByTarget(targetID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range existing {
		m.known[sub.Subdomain] = struct{}{}
	}
	return nil
}

// Watch follows one job's discovery file until ctx is cancelled. It blocks,
// so callers run it in its own goroutine alongside the scan.
func (m *DiscoveryMonitor) Watch(ctx context.Context, targetID, domain, workDir, jobID string) {
	path := filepath.Join(workDir, jobID+"_subdomains.txt")
	log := m.logger.WithFields(logger.Fields{"job_id": jobID, "file": path})

	if !m.awaitFile(ctx, path) {
		log.Warn("Discovery file never appeared, monitor exiting")
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Error("Discovery watcher creation failed")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		log.WithError(err).Error("Discovery watcher add failed")
		return
	}

	log.Info("Discovery monitor started")

	var offset int64
	m.consume(targetID, domain, path, &offset)

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				pending = true
			}

		case <-ticker.C:
			if pending {
				m.consume(targetID, domain, path, &offset)
				pending = false
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("Discovery watcher error")

		case <-ctx.Done():
			// Final pass picks up lines written just before the scan settled
			m.consume(targetID, domain, path, &offset)
			log.Info("Discovery monitor stopped")
			return
		}
	}
}

// awaitFile polls for the discovery file until it exists, ctx is cancelled or
// the wait times out
func (m *DiscoveryMonitor) awaitFile(ctx context.Context, path string) bool {
	timeout := time.After(5 * time.Minute)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return false
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				return true
			}
		}
	}
}

// consume reads lines appended since the last offset and processes them
func (m *DiscoveryMonitor) consume(targetID, domain, path string, offset *int64) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil || stat.Size() <= *offset {
		return
	}

	if _, err := file.Seek(*offset, 0); err != nil {
		return
	}
	buf := make([]byte, stat.Size()-*offset)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return
	}
	*offset += int64(n)

	var fresh []string
	m.mu.Lock()
	for _, line := range strings.Split(string(buf[:n]), "\n") {
		host := strings.TrimSpace(line)
		if host == "" || strings.HasPrefix(host, "#") {
			continue
		}
		if _, seen := m.known[host]; seen {
			continue
		}
		m.known[host] = struct{}{}
		fresh = append(fresh, host)
	}
	m.mu.Unlock()

	if len(fresh) == 0 {
		return
	}

	records := make([]models.Subdomain, 0, len(fresh))
	for _, host := range fresh {
		records = append(records, models.Subdomain{
			TargetID:  targetID,
			Subdomain: host,
			Status:    "discovered",
		})
	}
	if err := m.subdomains.BulkUpsert(records); err != nil {
		m.logger.WithError(err).Error("Discovered subdomain persist failed")
		return
	}

	m.logger.WithFields(logger.Fields{"target": domain, "count": len(fresh)}).Info("New subdomains discovered")
	if err := m.notifier.NewSubdomains(domain, fresh); err != nil {
		m.logger.WithError(err).Warn("Discovery notification failed")
	}
}
