package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.withmatt.com/mailcode/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Long: `Print the configuration mailcode would run with, after merging the config
file, the QUERY, MAX_RESULTS and CODE_PATTERN environment variables, and flags.`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path, err := configPath(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	path, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("unable to locate config file: %w", err)
	}
	return path, nil
}

// loadConfig merges defaults, the config file, the environment and flags,
// in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	loaded, err := loadConfigFile(cmd)
	if err != nil {
		return config.Config{}, fmt.Errorf("unable to load config: %w", err)
	}

	cfg, err := loaded.ApplyEnv(os.Getenv)
	if err != nil {
		return config.Config{}, err
	}

	applyFlags(cmd.Flags(), &cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadConfigFile reads --config when given, which must exist, and otherwise
// the XDG config file, which may be absent.
func loadConfigFile(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Load()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return config.LoadFile(path)
}

func applyFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("secrets") {
		cfg.SecretsPath, _ = flags.GetString("secrets")
	}
	if flags.Changed("token") {
		cfg.TokenPath, _ = flags.GetString("token")
	}
	if flags.Changed("query") {
		cfg.Query, _ = flags.GetString("query")
	}
	if flags.Changed("max") {
		cfg.MaxResults, _ = flags.GetInt64("max")
	}
	if flags.Changed("pattern") {
		if pattern, _ := flags.GetString("pattern"); pattern != "" {
			cfg.CodePattern = pattern
		}
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("html") {
		cfg.HTMLFallback, _ = flags.GetBool("html")
	}
}
