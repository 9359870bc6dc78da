package server

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/api/routes"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/config"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/internal/database"
)

type ServerOpts struct {
	Port       int
	Ip         string
	ConfigPath string
}

func NewServerCommand() *cobra.Command {
	opts := &ServerOpts{}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the scan orchestration API server",
		Long:  `Start the HTTP API that creates, dispatches and tracks scan jobs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg := config.LoadConfig()
			database.InitDB(cfg)

			settings, err := config.LoadScanSettings(opts.ConfigPath)
			if err != nil {
				return fmt.Errorf("load scan settings: %w", err)
			}

			router := routes.InitRouter(database.DB, settings)
			addr := fmt.Sprintf("%s:%d", opts.Ip, opts.Port)
			log.Infof("Listening on %s", addr)
			return router.Run(addr)
		},
	}

	serverCmd.Flags().IntVarP(&opts.Port, "port", "p", 8080, "Port to run the server on")
	serverCmd.Flags().StringVarP(&opts.Ip, "ip", "i", "0.0.0.0", "IP address to bind the server to")
	serverCmd.Flags().StringVar(&opts.ConfigPath, "config", "./config", "Configuration directory path")

	return serverCmd
}
