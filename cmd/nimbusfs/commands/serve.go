package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbusfs/internal/logger"
	"github.com/nimbusfs/nimbusfs/pkg/refserver"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve <root>",
	Short: "Serve a local directory as a remote store over HTTP",
	Long: `serve runs the reference remote-store HTTP server spec.md §6
describes, exposing <root> for any nimbusfs mount pointed at this
machine's remote_base_url.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := logger.Init(logger.Config{Level: "INFO", Format: "text", Output: "stdout"}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	srv, err := refserver.NewServer(refserver.Config{Root: args[0], Port: servePort})
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		cancel()
	}()

	logger.Info("serving remote store", "root", args[0], "addr", srv.Addr())
	return srv.Start(ctx)
}
