package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"savora/config"
	"savora/lifecycle"
	"savora/pkg/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "qdrantctl",
	Short: "Manage the local qdrant container behind the savora pipeline",
	Long: `qdrantctl starts, stops and inspects the dockerized qdrant instance
the ingest pipeline writes to, and snapshots its storage directory.`,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the qdrant container with persistent storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		if err := m.Start(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Qdrant is ready")
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the qdrant container",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		if err := m.Stop(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Qdrant stopped")
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop then start the qdrant container",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		if err := m.Restart(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Qdrant restarted")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show container state and HTTP reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		status, err := m.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Container: %s\n", status.Container)
		if status.Reachable {
			fmt.Println("HTTP: reachable")
		} else {
			fmt.Println("HTTP: not reachable")
		}
		fmt.Printf("Storage: %s\n", status.Storage)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [path]",
	Short: "Archive the storage dir into a tar.gz snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		out := ""
		if len(args) == 1 {
			out = args[0]
		}
		info, err := m.Backup(cmd.Context(), out)
		if err != nil {
			return err
		}
		fmt.Printf("Backup created: %s\n", info.ArchivePath)
		fmt.Printf("Files: %d\n", info.Files)
		fmt.Printf("Size: %s\n", formatSize(info.Size))
		fmt.Printf("Duration: %v\n", info.Duration.Round(time.Millisecond))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <archive>",
	Short: "Replace the storage dir with a snapshot's contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		if err := m.Restore(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Storage restored from %s\n", args[0])
		fmt.Println("Run: qdrantctl start")
		return nil
	},
}

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Show the storage directory and its size on disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, done, err := newManager()
		if err != nil {
			return err
		}
		defer done()

		stats, err := m.StorageInfo()
		if err != nil {
			return err
		}
		fmt.Printf("Path: %s\n", stats.Path)
		if !stats.Exists {
			fmt.Println("Storage directory does not exist yet, run: qdrantctl start")
			return nil
		}
		fmt.Printf("Files: %d\n", stats.Files)
		fmt.Printf("Size: %s\n", formatSize(stats.Size))
		return nil
	},
}

func newManager() (*lifecycle.Manager, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}

	m := lifecycle.NewManager(lifecycle.Config{
		Container:    cfg.Lifecycle.Container,
		Image:        cfg.Lifecycle.Image,
		StorageDir:   cfg.Lifecycle.StorageDir,
		HTTPPort:     cfg.Qdrant.HTTPPort,
		GRPCPort:     cfg.Qdrant.GRPCPort,
		ReadyTimeout: time.Duration(cfg.Lifecycle.ReadyTimeoutSec) * time.Second,
	}, logger)
	return m, func() { logger.Sync() }, nil
}

func formatSize(b int64) string {
	switch {
	case b >= 1024*1024*1024:
		return fmt.Sprintf("%.1f GB", float64(b)/(1024*1024*1024))
	case b >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
	case b >= 1024:
		return fmt.Sprintf("%.1f KB", float64(b)/1024)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.AddCommand(startCmd, stopCmd, restartCmd, statusCmd, backupCmd, restoreCmd, storageCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
