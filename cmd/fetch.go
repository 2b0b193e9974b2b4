package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/extract"
	"go.withmatt.com/mailcode/internal/gmail"
	"go.withmatt.com/mailcode/internal/log"
	"go.withmatt.com/mailcode/internal/oauth"
	"go.withmatt.com/mailcode/internal/render"
)

// gmailEndpoint overrides the Gmail API base URL when set.
var gmailEndpoint string

func init() {
	flags := rootCmd.Flags()
	flags.StringP("query", "q", "", "Gmail search expression, e.g. 'from:noreply@bank.example newer_than:1h'")
	flags.Int64P("max", "n", 0, fmt.Sprintf("maximum number of messages to process (default %d)", config.DefaultMaxResults))
	flags.StringP("pattern", "p", "", fmt.Sprintf("code pattern; the first capture group is the code (default %q)", config.DefaultCodePattern))
	flags.String("format", "", "output format: text, json or code (default \"text\")")
	flags.Bool("html", false, "use text/html bodies when a message has no text/plain part")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	pattern, err := extract.CompilePattern(cfg.CodePattern)
	if err != nil {
		return err
	}

	httpClient, err := authorize(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := gmail.NewService(ctx, httpClient, gmailEndpoint)
	if err != nil {
		return fmt.Errorf("unable to create Gmail service: %w", err)
	}

	ex := extract.New(gmail.NewClient(srv))
	if cfg.HTMLFallback {
		ex.HTML = extract.NewHTMLConverter()
	}

	query := gmail.MessageQuery{Search: cfg.Query, MaxResults: cfg.MaxResults}
	log.Printf("fetching query=%q max=%d pattern=%q", query.Search, query.MaxResults, cfg.CodePattern)
	results, err := ex.Run(ctx, query, pattern)
	if err != nil {
		return fmt.Errorf("unable to fetch messages: %w", err)
	}

	return render.Results(cmd.OutOrStdout(), results, render.Options{
		Format:  cfg.Format,
		Pattern: cfg.CodePattern,
	})
}

// authorize obtains a credential and returns a client that sends it with
// every request.
func authorize(ctx context.Context, cfg config.Config) (*http.Client, error) {
	manager, err := oauth.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	cred, err := manager.Obtain(ctx)
	if err != nil {
		return nil, err
	}
	return manager.HTTPClient(ctx, cred)
}
