package commands

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/nimbusfs/internal/cli/prompt"
	"github.com/nimbusfs/nimbusfs/internal/config"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	cacheRoot, err := prompt.InputRequired("Cache root directory")
	if err != nil {
		return handlePromptErr(err)
	}
	mountPoint, err := prompt.InputRequired("Mount point")
	if err != nil {
		return handlePromptErr(err)
	}
	remoteURL, err := prompt.InputRequired("Remote store URL (http://host:port or s3://bucket)")
	if err != nil {
		return handlePromptErr(err)
	}
	controlPort, err := prompt.InputPort("Control API port", 9091)
	if err != nil {
		return handlePromptErr(err)
	}
	metricsPort, err := prompt.InputPort("Metrics port", 9090)
	if err != nil {
		return handlePromptErr(err)
	}
	enableMetrics, err := prompt.Confirm("Enable Prometheus metrics", true)
	if err != nil {
		return handlePromptErr(err)
	}

	signingKey, err := randomSigningKey()
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}

	cfg := config.DefaultConfig()
	cfg.CacheRoot = cacheRoot
	cfg.MountPoint = mountPoint
	cfg.RemoteBaseURL = remoteURL
	cfg.Control.Enabled = true
	cfg.Control.Address = fmt.Sprintf("127.0.0.1:%d", controlPort)
	cfg.Control.SigningKey = signingKey
	cfg.Metrics.Enabled = enableMetrics
	cfg.Metrics.Address = fmt.Sprintf("127.0.0.1:%d", metricsPort)

	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}
	if err := config.Save(&cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "Mount with: nimbusfs mount --config %s\n", path)
	return nil
}

func randomSigningKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func handlePromptErr(err error) error {
	if prompt.IsAborted(err) {
		return fmt.Errorf("init cancelled")
	}
	return err
}
