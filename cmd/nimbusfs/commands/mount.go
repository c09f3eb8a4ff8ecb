package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbusfs/internal/config"
	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/internal/telemetry"
	"github.com/nimbusfs/nimbusfs/pkg/blockcache"
	"github.com/nimbusfs/nimbusfs/pkg/controlapi"
	"github.com/nimbusfs/nimbusfs/pkg/dispatch"
	"github.com/nimbusfs/nimbusfs/pkg/layout"
	"github.com/nimbusfs/nimbusfs/pkg/lifecycle"
	"github.com/nimbusfs/nimbusfs/pkg/metadata"
	"github.com/nimbusfs/nimbusfs/pkg/metadata/sqlitestore"
	"github.com/nimbusfs/nimbusfs/pkg/metrics"
	"github.com/nimbusfs/nimbusfs/pkg/remote"
)

var debugMount bool

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount the cache filesystem",
	RunE:  runMount,
}

func init() {
	mountCmd.Flags().BoolVar(&debugMount, "debug", false, "log every FUSE operation")
}

// controlInfo is written next to the cache so `nimbusfs status` can find
// a running mount's control API without the caller passing it by hand.
type controlInfo struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingCfg, profilingCfg := telemetry.FromConfig(cfg.Telemetry, Version)
	tracingShutdown, err := telemetry.Init(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tracingShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("init profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		metricsSrv := &metricsServer{addr: cfg.Metrics.Address, collector: collector}
		go metricsSrv.run()
	}

	if err := os.MkdirAll(cfg.CacheRoot, 0o755); err != nil {
		return fmt.Errorf("create cache root: %w", err)
	}

	store, err := sqlitestore.Open(layout.MetaDB(cfg.CacheRoot))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer store.Close()

	bitmaps := metadata.NewBitmaps(cfg.CacheRoot)

	rem, err := remote.Open(ctx, cfg.RemoteBaseURL, remote.DefaultOptions())
	if err != nil {
		return fmt.Errorf("open remote store: %w", err)
	}

	cache := blockcache.New(blockcache.Config{
		Root:       cfg.CacheRoot,
		PartBytes:  int64(cfg.PartBytes),
		BlockBytes: int64(cfg.BlockBytes),
	}, store, bitmaps, rem)
	cache.SetMetrics(collector)

	lifecyc := lifecycle.New(lifecycle.Config{
		Root:           cfg.CacheRoot,
		PartBytes:      int64(cfg.PartBytes),
		BlockBytes:     int64(cfg.BlockBytes),
		CapacityBytes:  int64(cfg.CapacityBytes),
		FlushInterval:  cfg.FlushInterval,
		MergeGapBlocks: int64(cfg.MergeGapBlocks),
	}, store, bitmaps, rem)
	lifecyc.SetMetrics(collector)

	if err := recoverDirtyObjects(ctx, store, lifecyc); err != nil {
		logger.Error("crash recovery writeback failed", "error", err)
	}
	go lifecyc.Run(ctx)

	if cfg.Control.Enabled {
		controlSrv, token, err := startControlAPI(cfg, lifecyc)
		if err != nil {
			return fmt.Errorf("start control API: %w", err)
		}
		go func() {
			if err := controlSrv.Start(ctx); err != nil {
				logger.Error("control API server error", "error", err)
			}
		}()
		if err := writeControlInfo(cfg.CacheRoot, controlSrv.Addr(), token); err != nil {
			logger.Warn("failed to persist control API info", "error", err)
		}
		defer os.Remove(controlInfoPath(cfg.CacheRoot))
	}

	fuseSrv, err := dispatch.Mount(cfg.MountPoint, cache, lifecyc, rem, debugMount)
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("mounted", "mount_point", cfg.MountPoint, "remote", cfg.RemoteBaseURL)
	done := make(chan struct{})
	go func() {
		fuseSrv.Wait()
		close(done)
	}()

	select {
	case <-sigChan:
		logger.Info("shutdown signal received, unmounting")
		cancel()
		if err := fuseSrv.Unmount(); err != nil {
			logger.Error("unmount error", "error", err)
		}
		<-done
	case <-done:
		cancel()
	}

	logger.Info("mount stopped")
	return nil
}

// recoverDirtyObjects scans the metadata store for objects a prior
// run left dirty and flushes them immediately, rather than waiting for
// the first periodic tick, so a crash can't leave writes stranded for
// a full flush interval.
func recoverDirtyObjects(ctx context.Context, store metadata.Store, lifecyc *lifecycle.Manager) error {
	entries, err := store.AllEntries()
	if err != nil {
		return fmt.Errorf("scan metadata for recovery: %w", err)
	}
	dirty := 0
	for _, e := range entries {
		if e.Dirty {
			dirty++
		}
	}
	if dirty == 0 {
		return nil
	}
	logger.Info("recovering dirty objects from a prior run", "count", dirty)
	lifecyc.WritebackOnce(ctx)
	return nil
}

func startControlAPI(cfg *config.Config, provider controlapi.StatsProvider) (*controlapi.Server, string, error) {
	port, err := portFromAddress(cfg.Control.Address)
	if err != nil {
		return nil, "", err
	}
	return controlapi.NewServer(controlapi.Config{
		Port:   port,
		Secret: cfg.Control.SigningKey,
	}, provider)
}

func controlInfoPath(cacheRoot string) string {
	return filepath.Join(cacheRoot, "control.json")
}

func writeControlInfo(cacheRoot, addr, token string) error {
	data, err := json.Marshal(controlInfo{Address: addr, Token: token})
	if err != nil {
		return err
	}
	return os.WriteFile(controlInfoPath(cacheRoot), data, 0o600)
}

func readControlInfo(cacheRoot string) (*controlInfo, error) {
	data, err := os.ReadFile(controlInfoPath(cacheRoot))
	if err != nil {
		return nil, err
	}
	var info controlInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
