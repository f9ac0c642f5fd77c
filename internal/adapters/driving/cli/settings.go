package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/memquery/internal/adapters/driven/config/env"
	"github.com/custodia-labs/memquery/internal/adapters/driven/config/file"
	"github.com/custodia-labs/memquery/internal/core/domain"
	"github.com/custodia-labs/memquery/internal/core/services"
)

var settingsRemote bool

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the settings in ~/.memquery/config.toml.

A running "memquery serve" picks up ranking weight and source changes
without a restart. Environment variables such as
MEMQUERY_SOURCES_COGNEE_API_KEY override the file when the service reads it.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Long: `Show the effective settings: the config file overlaid with MEMQUERY_*
environment variables. Secrets are masked. With --remote, show the
configuration of the running server instead.`,
	RunE: runSettingsShow,
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := file.NewConfigStore(configDir)
		if err != nil {
			return err
		}
		cmd.Println(store.Path())
		return nil
	},
}

var settingsWeightsCmd = &cobra.Command{
	Use:   "weights <relevance> <recency> <source_trust> <user_preference>",
	Short: "Set hybrid ranking weights",
	Example: `  memquery settings weights 0.5 0.2 0.2 0.1
  memquery settings weights -- 0.6 0.2 0.2 0`,
	Args: cobra.ExactArgs(4),
	RunE: runSettingsWeights,
}

var settingsEnableCmd = &cobra.Command{
	Use:   "enable <source>",
	Short: "Enable a memory source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], true)
	},
}

var settingsDisableCmd = &cobra.Command{
	Use:   "disable <source>",
	Short: "Disable a memory source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSourceEnabled(cmd, args[0], false)
	},
}

var settingsCacheCmd = &cobra.Command{
	Use:   "cache <memory|redis>",
	Short: "Select the result cache backend",
	Long: `Select the result cache backend. The redis backend reads cache.redis_url
(default redis://localhost:6379/0) and falls back to memory when Redis
cannot be reached at startup.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := writableSettings()
		if err != nil {
			return err
		}
		kind := domain.CacheBackendKind(strings.ToLower(args[0]))
		if err := svc.SetCacheBackend(kind); err != nil {
			return err
		}
		cmd.Printf("Cache backend set to %s. Restart memquery serve to apply.\n", kind)
		return nil
	},
}

var settingsAPIKeyCmd = &cobra.Command{
	Use:   "api-key <source>",
	Short: "Store the API key for a source",
	Long: `Prompt for a source's API key and store it in the config file, which is
written with owner-only permissions. Prefer MEMQUERY_SOURCES_<NAME>_API_KEY
where keys should not touch disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsAPIKey,
}

func init() {
	settingsShowCmd.Flags().BoolVar(&settingsRemote, "remote", false, "show the running server's configuration")
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsPathCmd)
	settingsWeightsCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v (pass negative weights after --)", domain.ErrInvalidInput, err)
	})
	settingsCmd.AddCommand(settingsWeightsCmd)
	settingsCmd.AddCommand(settingsEnableCmd)
	settingsCmd.AddCommand(settingsDisableCmd)
	settingsCmd.AddCommand(settingsCacheCmd)
	settingsCmd.AddCommand(settingsAPIKeyCmd)
	rootCmd.AddCommand(settingsCmd)
}

// effectiveSettings reads the config file with the environment overlay.
func effectiveSettings() (*services.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return services.NewSettingsService(env.New(store)), nil
}

// writableSettings reads the config file alone, so saving never copies
// environment values to disk.
func writableSettings() (*services.SettingsService, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return services.NewSettingsService(store), nil
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	format, err := ParseFormat(output)
	if err != nil {
		return err
	}
	r := NewRenderer(cmd.OutOrStdout(), format)

	if settingsRemote {
		cfg, err := NewClient(serverURL).Config(cmd.Context())
		if err != nil {
			return err
		}
		if format == FormatJSON {
			return r.JSON(cfg)
		}
		if err := r.Sources(cfg.Sources, cfg.RankingWeights); err != nil {
			return err
		}
		cmd.Printf("cache: %s, ttl %.0fs, max %d entries\n", cfg.Cache.Backend, cfg.Cache.TTL, cfg.Cache.MaxSize)
		return nil
	}

	svc, err := effectiveSettings()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	sources := make([]domain.SourceConfig, len(settings.Sources))
	for i, src := range settings.Sources {
		sources[i] = src.Redacted()
	}

	if format == FormatJSON {
		return r.JSON(map[string]any{
			"service":         settings.Service,
			"cache":           redactedCache(settings.Cache),
			"ranking_weights": settings.Ranking,
			"retry":           settings.Retry,
			"telemetry":       settings.Telemetry,
			"storage":         settings.Storage,
			"sources":         sources,
		})
	}

	cmd.Println("[Service]")
	cmd.Printf("  Listen: %s:%d\n", settings.Service.Host, settings.Service.Port)
	cmd.Printf("  Max concurrent source calls: %d\n", settings.Service.MaxConcurrentQueries)
	cmd.Printf("  Query timeout: %s\n", settings.Service.QueryTimeout)
	cmd.Println()

	cmd.Println("[Cache]")
	cache := redactedCache(settings.Cache)
	cmd.Printf("  Backend: %s\n", cache.Backend)
	cmd.Printf("  TTL: %s\n", cache.TTL)
	cmd.Printf("  Max size: %d\n", cache.MaxSize)
	if cache.Backend == domain.CacheBackendRedis {
		cmd.Printf("  Redis: %s\n", cache.RedisURL)
	}
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	if settings.Storage.Path != "" {
		cmd.Printf("  Path: %s\n", settings.Storage.Path)
	}
	cmd.Println()

	cmd.Println("[Telemetry]")
	if settings.Telemetry.Enabled {
		cmd.Printf("  Endpoint: %s (sample ratio %.2f)\n", settings.Telemetry.Endpoint, settings.Telemetry.SampleRatio)
	} else {
		cmd.Println("  Disabled")
	}
	cmd.Println()

	if err := r.Sources(sources, settings.Ranking); err != nil {
		return err
	}
	for _, src := range settings.Sources {
		if src.APIKey != "" {
			cmd.Printf("  %s api key: %s\n", src.Name, maskAPIKey(src.APIKey))
		}
	}
	cmd.Println()

	if err := svc.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

// redactedCache hides the Redis password.
func redactedCache(c domain.CacheSettings) domain.CacheSettings {
	if i := strings.Index(c.RedisURL, "@"); i >= 0 {
		if j := strings.Index(c.RedisURL, "://"); j >= 0 && j < i {
			c.RedisURL = c.RedisURL[:j+3] + "***" + c.RedisURL[i:]
		}
	}
	return c
}

func runSettingsWeights(cmd *cobra.Command, args []string) error {
	values := make([]float64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("%w: weight %q is not a number", domain.ErrInvalidInput, arg)
		}
		values[i] = v
	}

	weights := domain.RankingWeights{
		Relevance:      values[0],
		Recency:        values[1],
		SourceTrust:    values[2],
		UserPreference: values[3],
	}

	svc, err := writableSettings()
	if err != nil {
		return err
	}
	if err := svc.SetRankingWeights(weights); err != nil {
		return err
	}
	cmd.Printf("Ranking weights set: relevance %.2f, recency %.2f, source trust %.2f, user preference %.2f\n",
		weights.Relevance, weights.Recency, weights.SourceTrust, weights.UserPreference)
	return nil
}

func setSourceEnabled(cmd *cobra.Command, name string, enabled bool) error {
	svc, err := writableSettings()
	if err != nil {
		return err
	}
	if err := svc.SetSourceEnabled(name, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	cmd.Printf("Source %s %s.\n", name, state)
	return nil
}

func runSettingsAPIKey(cmd *cobra.Command, args []string) error {
	name := args[0]

	svc, err := writableSettings()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return err
	}

	found := false
	for i := range settings.Sources {
		if settings.Sources[i].Name == name {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSource, name)
	}

	cmd.Printf("API key for %s: ", name)
	key := readPassword(cmd)
	cmd.Println()
	if key == "" {
		return fmt.Errorf("%w: empty api key", domain.ErrInvalidInput)
	}

	for i := range settings.Sources {
		if settings.Sources[i].Name == name {
			settings.Sources[i].APIKey = key
		}
	}
	if err := svc.Save(settings); err != nil {
		return err
	}
	cmd.Printf("Stored api key %s for %s.\n", maskAPIKey(key), name)
	return nil
}

// readPassword reads without echo from a terminal, or a line otherwise.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(cmd *cobra.Command) string {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
