package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/dao"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/database"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/models"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/notification"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/scanners"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/services"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/workflow"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/pkg/logger"
)

// Options configures a one-shot CLI scan
type Options struct {
	Domain     string
	ScanType   string
	Org        string
	ConfigPath string
	Verbose    bool
}

// NewScanCommand runs a single scan locally, without the API, and prints the
// result JSON. Results still persist to the database so later scans can
// build on them.
func NewScanCommand() *cobra.Command {
	opts := &Options{}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan against a domain and print the result",
		Long:  `Run a single scan type (or a comprehensive assessment) against a domain directly from the CLI`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if opts.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			jobType := models.JobType(opts.ScanType)
			if !jobType.IsValid() {
				return fmt.Errorf("unknown scan type %q", opts.ScanType)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				logger.WithFields(logger.Fields{"signal": sig.String()}).Info("Received shutdown signal")
				cancel()
			}()

			return run(ctx, opts, jobType)
		},
	}

	scanCmd.Flags().StringVarP(&opts.Domain, "domain", "d", "", "Target domain to scan (required)")
	scanCmd.Flags().StringVarP(&opts.ScanType, "type", "t", "subdomain_scan", "Scan type to run")
	scanCmd.Flags().StringVar(&opts.Org, "org", "cli", "Organization scope for stored results")
	scanCmd.Flags().StringVar(&opts.ConfigPath, "config", "./config", "Configuration directory path")
	scanCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
	scanCmd.MarkFlagRequired("domain")

	return scanCmd
}

func run(ctx context.Context, opts *Options, jobType models.JobType) error {
	cfg := config.LoadConfig()
	database.InitDB(cfg)
	db := database.DB

	settings, err := config.LoadScanSettings(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load scan settings: %w", err)
	}

	phases, err := workflow.LoadPhases(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load workflow phases: %w", err)
	}

	notifier, err := notification.NewClient()
	if err != nil {
		logger.WithFields(logger.Fields{"error": err}).Info("Discord notifications disabled")
	}
	defer notifier.Close()

	targetDao := dao.NewTargetDAO(db)
	target, err := targetDao.FindOrCreateByDomain(opts.Domain, opts.Org)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}

	stores := scanners.Stores{
		Subdomains:      dao.NewSubdomainDAO(db),
		Ports:           dao.NewPortDAO(db),
		Directories:     dao.NewDirectoryDAO(db),
		Vulnerabilities: dao.NewVulnerabilityDAO(db),
	}
	registry := scanners.DefaultRegistry()

	svc := services.NewScanService(services.ScanServiceDeps{
		Jobs:      dao.NewScanJobDAO(db),
		Targets:   targetDao,
		Stores:    stores,
		Executors: registry,
		Workflow:  workflow.NewOrchestrator(phases, registry),
		Settings:  settings,
		Notifier:  notifier,
		Monitor:   services.NewDiscoveryMonitor(stores.Subdomains, notifier),
	})

	jobs, err := svc.CreateScanJobs(target.ID, opts.Org, "cli", []models.JobType{jobType}, nil, models.PriorityMedium, nil)
	if err != nil {
		return fmt.Errorf("create scan job: %w", err)
	}

	outcomes := svc.StartScanJobs(ctx, jobs)
	outcome := outcomes[0]
	if outcome.Err != nil {
		return fmt.Errorf("scan %s: %w", outcome.JobID, outcome.Err)
	}

	job, err := svc.GetScanJob(outcome.JobID, opts.Org)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(job.Results, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
