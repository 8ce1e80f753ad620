package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/culler-io/culler/internal/filters"
	"github.com/culler-io/culler/internal/inventory"
	"github.com/culler-io/culler/internal/logging"
)

var (
	showPattern    string
	showRepository string
	showFilterFile string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List cluster objects, optionally narrowed by a filter file",
}

var showIndicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List indices matching the pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cl, err := newClient(cfg)
		if err != nil {
			return err
		}

		inv, err := inventory.NewIndexInventory(cmd.Context(), cl, showPattern)
		if err != nil {
			return err
		}
		ws, err := narrow(cmd, inv)
		if err != nil {
			return err
		}
		for _, name := range ws.Names() {
			fmt.Println(name)
		}
		return nil
	},
}

var showSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots in the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cl, err := newClient(cfg)
		if err != nil {
			return err
		}

		inv, err := inventory.NewSnapshotInventory(cmd.Context(), cl, showRepository)
		if err != nil {
			return err
		}
		ws, err := narrow(cmd, inv)
		if err != nil {
			return err
		}
		for _, name := range ws.Names() {
			info, ok := inv.Info(name)
			if !ok {
				continue
			}
			started := time.Unix(info.CreationEpoch, 0).UTC().Format(time.RFC3339)
			fmt.Printf("%s\t%s\t%s\n", name, info.SnapshotState, started)
		}
		return nil
	},
}

// narrow runs the --filters pipeline over the inventory when one is given,
// otherwise it returns the full working set.
func narrow(cmd *cobra.Command, inv *inventory.Inventory) (inventory.WorkingSet, error) {
	if showFilterFile == "" {
		return inv.WorkingSet(), nil
	}
	fl, err := loadFilterFile(showFilterFile)
	if err != nil {
		return inventory.WorkingSet{}, err
	}
	pipeline := filters.NewPipeline(fl).WithLogger(logging.Global())
	return pipeline.Run(cmd.Context(), inv, inv.WorkingSet())
}

// loadFilterFile reads a standalone filter list: a YAML document with a
// top-level `filters` sequence, the same shape an action entry uses.
func loadFilterFile(path string) (filters.List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read filter file: %w", err)
	}
	var doc struct {
		Filters filters.List `yaml:"filters"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse filter file %s: %w", path, err)
	}
	return doc.Filters, nil
}

func init() {
	showCmd.PersistentFlags().StringVar(&showFilterFile, "filters", "", "YAML file with a filters list to apply")
	showIndicesCmd.Flags().StringVar(&showPattern, "pattern", "*", "index name glob")
	showSnapshotsCmd.Flags().StringVar(&showRepository, "repository", "", "snapshot repository")
	_ = showSnapshotsCmd.MarkFlagRequired("repository")

	showCmd.AddCommand(showIndicesCmd)
	showCmd.AddCommand(showSnapshotsCmd)
	rootCmd.AddCommand(showCmd)
}
