package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/netmount/netmount/internal/gateway"
	"github.com/netmount/netmount/internal/logger"
	"github.com/netmount/netmount/internal/retry"
	"github.com/netmount/netmount/internal/rpc"
	"github.com/netmount/netmount/internal/writebuffer"
	"github.com/netmount/netmount/pkg/config"
	"github.com/netmount/netmount/pkg/metrics"
	promnetmount "github.com/netmount/netmount/pkg/metrics/prometheus"
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount a netmountd export over FUSE",
	Long: `Mount dials the configured netmountd server and serves its export at
client.mount_point via FUSE, until interrupted.

Examples:
  netmount mount
  netmount mount --config /etc/netmount/netmount.yaml
  NETMOUNT_CLIENT_MOUNT_POINT=/mnt/remote netmount mount`,
	RunE: runMount,
}

func init() {
	rootCmd.AddCommand(mountCmd)
}

func runMount(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("netmount starting", "version", Version)
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	var rpcMetrics metrics.RPCMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		rpcMetrics = promnetmount.NewRPCMetrics()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
		metricsSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
	} else {
		logger.Info("metrics collection disabled")
	}

	adapter := rpc.NewAdapter(cfg.Client.ServerAddress)
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Warn("error closing rpc adapter", logger.Err(err))
		}
	}()

	policy := retry.Policy{
		MaxAttempts:       cfg.Retry.MaxAttempts,
		InitialBackoff:    cfg.Retry.InitialBackoff,
		PerAttemptTimeout: cfg.Retry.PerAttemptTimeout,
		Metrics:           rpcMetrics,
	}

	asyncWrites := true
	if cfg.Client.AsyncWrites != nil {
		asyncWrites = *cfg.Client.AsyncWrites
	}
	gw := gateway.New(adapter, policy, writebuffer.New(), asyncWrites)

	conn, err := fuse.Mount(
		cfg.Client.MountPoint,
		fuse.FSName("netmount"),
		fuse.Subtype("netmountfs"),
		fuse.VolumeName(cfg.Client.MountPoint),
	)
	if err != nil {
		return fmt.Errorf("failed to mount %s: %w", cfg.Client.MountPoint, err)
	}
	defer conn.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received, unmounting", "mount_point", cfg.Client.MountPoint)
		if err := fuse.Unmount(cfg.Client.MountPoint); err != nil {
			logger.Warn("unmount request failed", logger.Err(err))
		}
	}()

	logger.Info("netmount mounted", "mount_point", cfg.Client.MountPoint, "server_address", cfg.Client.ServerAddress)

	if err := fs.Serve(conn, gw); err != nil {
		return fmt.Errorf("fuse serve error: %w", err)
	}

	<-conn.Ready
	if err := conn.MountError; err != nil {
		return fmt.Errorf("mount error: %w", err)
	}

	logger.Info("netmount unmounted", "mount_point", cfg.Client.MountPoint)
	return nil
}
