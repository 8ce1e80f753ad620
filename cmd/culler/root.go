package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/culler-io/culler/internal/client"
	"github.com/culler-io/culler/internal/config"
	"github.com/culler-io/culler/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "culler",
	Short: "Culler - retention planning for search cluster indices and snapshots",
	Long: `Culler builds an inventory of cluster objects, narrows it through an
ordered pipeline of declarative filters (pattern, age, period, count,
space, and more), and reports the objects each administrative action
would operate on. It never mutates the cluster.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
}

// loadConfig reads the configuration and wires the global logger to it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	logging.Configure(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// newClient builds the cluster client from the configuration.
func newClient(cfg config.Config) (client.Client, error) {
	return client.NewHTTPClient(client.HTTPConfig{
		Endpoint: cfg.Cluster.Endpoint,
		Username: cfg.Cluster.Username,
		Password: cfg.Cluster.Password,
		Timeout:  cfg.Cluster.Timeout(),
	})
}
