// Package cli implements the boltindex command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/boltindex/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "boltindex",
		Short: "Fused embeddings, vector indexes and checkpointed processing",
		Long: `boltindex embeds text, code and structured content into fused vectors,
stores them in flat, HNSW or hybrid indexes, and runs processing plans
that can be paused and resumed from checkpoints.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.SetVerbose(a.verbose)
			loadEnv(a.configDir)
		},
	}

	// Values already set on a stay as flag defaults.
	flags := root.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", a.verbose, "print debug logging")
	flags.StringVar(&a.configDir, "config-dir", a.configDir, "configuration directory (default ~/.boltindex)")
	flags.StringVar(&a.dataDir, "data-dir", a.dataDir, "data directory (default <config-dir>/data)")
	flags.StringVar(&a.backend, "storage", a.backend, "storage backend: sqlite, memory, postgres or minio")

	root.AddCommand(
		newIngestCommand(a),
		newSearchCommand(a),
		newIndexCommand(a),
		newRunCommand(a),
		newResumeCommand(a),
		newExecutionsCommand(a),
		newCheckpointsCommand(a),
		newWatchCommand(a),
		newSettingsCommand(a),
		newMCPCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	a := &app{}
	defer a.close()
	return newRootCommand(a).ExecuteContext(ctx)
}

// loadEnv reads .env files from the working directory and the config
// directory. Variables already set in the environment win.
func loadEnv(configDir string) {
	files := []string{".env"}
	if dir, err := resolveConfigDir(configDir); err == nil {
		files = append(files, filepath.Join(dir, ".env"))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("reading %s: %v", f, err)
		}
	}
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir != "" {
		return configDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".boltindex"), nil
}
