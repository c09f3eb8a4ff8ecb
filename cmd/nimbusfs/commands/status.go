package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbusfs/internal/bytesize"
	"github.com/nimbusfs/nimbusfs/internal/cli/output"
	"github.com/nimbusfs/nimbusfs/internal/config"
	"github.com/nimbusfs/nimbusfs/pkg/controlapi"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running mount's cache occupancy and writeback state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.Control.Enabled {
		return fmt.Errorf("control API is disabled in this config; enable control.enabled to use status")
	}

	info, err := readControlInfo(cfg.CacheRoot)
	if err != nil {
		return fmt.Errorf("no running mount found for %s (is it mounted?): %w", cfg.CacheRoot, err)
	}

	result, err := controlapi.FetchStatus(info.Address, info.Token)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}

	lastWriteback := "never"
	if !result.LastWriteback.IsZero() {
		lastWriteback = result.LastWriteback.Format(time.RFC3339)
	}

	output.SimpleTable(cmd.OutOrStdout(), [][2]string{
		{"Dirty", bytesize.Size(result.DirtyBytes).String()},
		{"Clean", bytesize.Size(result.CleanBytes).String()},
		{"Capacity", bytesize.Size(result.CapacityBytes).String()},
		{"Last writeback", lastWriteback},
	})
	return nil
}
