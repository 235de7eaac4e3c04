package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/witlox/horao/pkg/log"
)

var (
	// version information (set via ldflags during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "horao",
	Short:   "horao is a gossip-federated logical infrastructure and fair-share reservation daemon",
	Version: version,
	Long: `horao tracks compute, network, and storage resources across
datacenters as CRDTs, admits and places tenant claims under a
dominant-resource-fair-share policy, and replicates state between
datacenters over an authenticated gossip protocol. There is no central
coordinator: every peer runs the same binary.`,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"horao version %s\nCommit: %s\nBuilt: %s\n",
		version, commit, buildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("peer-id", "", "this peer's id (required)")
	rootCmd.PersistentFlags().String("host-id", "", "this peer's host identifier (defaults to hostname)")
	rootCmd.PersistentFlags().String("peer-secret", "", "shared HMAC secret authenticating gossip envelopes")
	rootCmd.PersistentFlags().Bool("peer-strict", false, "reject gossip from peers absent from the configured peer list")
	rootCmd.PersistentFlags().Float64("clock-offset", 5.0, "acceptable clock skew in seconds before a remote timestamp is rejected")
	rootCmd.PersistentFlags().Int("sync-delta", 180, "seconds of queued ops before a peer outbox force-flushes")
	rootCmd.PersistentFlags().Int("sync-max", 1000, "queued op count before a peer outbox force-flushes")
	rootCmd.PersistentFlags().String("data-dir", "./data", "directory holding this peer's bbolt store")
	rootCmd.PersistentFlags().String("listen", ":7946", "address the gossip and metrics HTTP server binds")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs as JSON instead of console format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(peerCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(resourceCmd)
	rootCmd.AddCommand(datacenterCmd)
	rootCmd.AddCommand(maintenanceCmd)
	rootCmd.AddCommand(snapshotCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
	})
}
