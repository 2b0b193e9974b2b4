package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/gmail"
	"go.withmatt.com/mailcode/internal/log"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "mailcode",
	Short: "Fetch verification codes from Gmail",
	Long: `mailcode lists Gmail messages matching a search expression and extracts a
verification code from each one with a regular expression.

The first run opens a browser to authorize read-only Gmail access; the token
is cached for later runs.`,
	Version: version,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runFetch,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		return log.Setup(debug)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return log.Close()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "enable debug logging")
	flags.String("config", "", "config file (default $XDG_CONFIG_HOME/mailcode/config.toml)")
	flags.String("secrets", "", fmt.Sprintf("OAuth client secrets JSON (default %q)", config.DefaultSecretsPath))
	flags.String("token", "", fmt.Sprintf("cached token file (default %q)", config.DefaultTokenPath))
}

func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer log.Close()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

// printError writes err and, for Gmail failures, the response details.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "mailcode: %v\n", err)

	var te *gmail.TransportError
	if !errors.As(err, &te) {
		return
	}
	if te.Status != 0 {
		fmt.Fprintf(w, "  status: %d\n", te.Status)
	}
	if body := strings.TrimSpace(te.Body); body != "" {
		fmt.Fprintf(w, "  body: %s\n", body)
	}
	if te.Cause != nil {
		fmt.Fprintf(w, "  cause: %v\n", te.Cause)
	}
}
