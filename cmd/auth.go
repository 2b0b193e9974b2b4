package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/oauth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail access and cache the token",
	Long:  "Run the browser consent flow if no token is cached yet. A cached token is left as is.",
	Args:  cobra.NoArgs,
	RunE:  runAuth,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the cached token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manager, err := oauth.NewManager(cfg)
	if err != nil {
		return err
	}
	if _, err := manager.Obtain(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Authorized. Token cached in %s.\n", storeLocation(cfg))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	manager, err := oauth.NewManager(cfg)
	if err != nil {
		return err
	}
	if err := manager.Logout(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed cached token from %s.\n", storeLocation(cfg))
	return nil
}

func storeLocation(cfg config.Config) string {
	if cfg.TokenStore == config.TokenStoreKeyring {
		return "the system keyring"
	}
	return cfg.TokenPath
}
