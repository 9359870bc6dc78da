package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/cmd/bountyd/scan"
	"github.com/ethicalPap/bug-bounty-frameworkv2-sub000/cmd/bountyd/server"
)

func Execute() error {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "bountyd",
		Short: "Bug-bounty reconnaissance and scan orchestration",
		Long:  `bountyd enumerates a target's attack surface, tracks scan jobs through their lifecycle and runs multi-phase comprehensive assessments`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.InfoLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(server.NewServerCommand())
	rootCmd.AddCommand(scan.NewScanCommand())

	return rootCmd.Execute()
}
