package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/boltindex/internal/adapters/driven/ai"
	"github.com/custodia-labs/boltindex/internal/core/domain"
	"github.com/custodia-labs/boltindex/internal/core/ports/driven"
)

var (
	oracleProviders = []domain.AIProvider{
		domain.AIProviderOllama,
		domain.AIProviderOpenAI,
		domain.AIProviderAnthropic,
	}
	embedderProviders = []domain.AIProvider{
		domain.AIProviderLocal,
		domain.AIProviderOllama,
		domain.AIProviderOpenAI,
	}
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage application settings",
		Long: `View and configure storage, the oracle, the text embedder, and index and
engine tuning.

Use subcommands to configure specific settings.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSettingsShow(cmd, a)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current settings",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSettingsShow(cmd, a)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a single setting",
			Long: `Stores one dotted setting key, for example:

  boltindex settings set index.strategy flat
  boltindex settings set engine.max_retries 5
  boltindex settings set engine.wall_clock_budget 10m`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := a.settingsService()
				if err != nil {
					return err
				}
				if err := svc.Set(args[0], parseValue(args[1])); err != nil {
					return err
				}
				cmd.Printf("%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "oracle",
			Short: "Configure the oracle provider",
			Long:  `Configure the language model that describes content before it is embedded.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return configureProvider(cmd, a, bufio.NewReader(cmd.InOrStdin()), oracleProvider, ai.NewConfigValidator())
			},
		},
		&cobra.Command{
			Use:   "embedder",
			Short: "Configure the text embedder",
			Long:  `Configure the embedder applied to the oracle's descriptions.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return configureProvider(cmd, a, bufio.NewReader(cmd.InOrStdin()), embedderProvider, ai.NewConfigValidator())
			},
		},
	)
	return cmd
}

func runSettingsShow(cmd *cobra.Command, a *app) error {
	svc, err := a.settingsService()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	switch settings.Storage.Backend {
	case domain.StorageSQLite:
		dir := settings.Storage.DataDir
		if dir == "" {
			dir = "(default)"
		}
		cmd.Printf("  Data dir: %s\n", dir)
	case domain.StoragePostgres:
		cmd.Printf("  DSN: %s\n", maskDSN(settings.Storage.PostgresDSN))
	case domain.StorageMinio:
		cmd.Printf("  Endpoint: %s\n", settings.Storage.MinioEndpoint)
		cmd.Printf("  Bucket: %s\n", settings.Storage.MinioBucket)
	}
	cmd.Println()

	cmd.Println("[Oracle]")
	if settings.Oracle.Provider == "" {
		cmd.Println("  Provider: (none, embeddings are structural-only)")
	} else {
		printProvider(cmd, settings.Oracle.Provider, settings.Oracle.Model, settings.Oracle.BaseURL,
			settings.Oracle.APIKey, settings.Oracle.IsConfigured())
		if settings.Oracle.RatePerSecond > 0 {
			cmd.Printf("  Rate limit: %.1f/s (burst %d)\n", settings.Oracle.RatePerSecond, settings.Oracle.Burst)
		}
	}
	cmd.Println()

	cmd.Println("[Embedder]")
	printProvider(cmd, settings.Embedder.Provider, settings.Embedder.Model, settings.Embedder.BaseURL,
		settings.Embedder.APIKey, settings.Embedder.IsConfigured())
	cmd.Println()

	cmd.Println("[Generator]")
	cmd.Printf("  Dimension: %d\n", settings.Generator.Dimension)
	cmd.Printf("  Fusion: %s\n", settings.Generator.Fusion)
	cmd.Printf("  Weights: structural %.2f, semantic %.2f\n",
		settings.Generator.StructuralWeight, settings.Generator.SemanticWeight)
	cmd.Printf("  Oracle timeout: %s\n", settings.Generator.OracleTimeout)
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d, overlap: %d, boundary: %s\n",
		settings.Chunk.Size, settings.Chunk.Overlap, settings.Chunk.Boundary)
	cmd.Println()

	cmd.Println("[Index]")
	cmd.Printf("  Strategy: %s\n", settings.Index.Strategy.Description())
	cmd.Printf("  Metric: %s\n", settings.Index.Metric)
	cmd.Println()

	cmd.Println("[Engine]")
	cmd.Printf("  Workers: %d\n", settings.Engine.Workers)
	cmd.Printf("  Max retries: %d\n", settings.Engine.MaxRetries)
	cmd.Printf("  Checkpoint interval: %s\n", settings.Engine.CheckpointInterval)
	if settings.Engine.WallClockBudget > 0 {
		cmd.Printf("  Wall clock budget: %s\n", settings.Engine.WallClockBudget)
	}
	cmd.Println()

	cmd.Println("[Resources]")
	kinds := make([]string, 0, len(settings.Resources.Capacities))
	for kind := range settings.Resources.Capacities {
		kinds = append(kinds, string(kind))
	}
	slices.Sort(kinds)
	for _, kind := range kinds {
		cmd.Printf("  %s: %d\n", kind, settings.Resources.Capacities[domain.ResourceKind(kind)])
	}
	cmd.Println()

	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	if model != "" {
		cmd.Printf("  Model: %s\n", model)
	}
	if provider == domain.AIProviderOllama {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

// providerRole is the oracle or the embedder.
type providerRole int

const (
	oracleProvider providerRole = iota
	embedderProvider
)

func configureProvider(
	cmd *cobra.Command,
	a *app,
	reader *bufio.Reader,
	role providerRole,
	validator driven.AIConfigValidator,
) error {
	svc, err := a.settingsService()
	if err != nil {
		return err
	}

	providers, defaults, label := oracleProviders, domain.DefaultOracleModels(), "Oracle"
	if role == embedderProvider {
		providers, defaults, label = embedderProviders, domain.DefaultEmbedderModels(), "Embedder"
	}

	cmd.Printf("Select %s Provider\n", label)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key (empty to use the environment): ")
		apiKey = readPassword(reader)
		cmd.Println()
	}

	if role == embedderProvider {
		err = svc.SetEmbedderProvider(selected, model, apiKey)
	} else {
		err = svc.SetOracleProvider(selected, model, apiKey)
	}
	if err != nil {
		return fmt.Errorf("failed to configure %s: %w", strings.ToLower(label), err)
	}

	settings, err := svc.Get()
	if err != nil {
		return err
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if role == embedderProvider {
		err = validator.ValidateEmbedder(&settings.Embedder)
	} else {
		err = validator.ValidateOracle(&settings.Oracle)
	}
	if err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", strings.ToLower(label), err)
	}
	cmd.Println("OK")

	cmd.Printf("%s configured: %s (%s)\n", label, selected.Description(), model)
	return nil
}

// parseValue turns a command-line value into the type the config file stores.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo from a terminal, or a line from reader.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password in a postgres URL.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPass := strings.Cut(userinfo, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}
