package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marquee-labs/marquee/catalog"
)

// NewSearchCmd creates the "search" subcommand, a one-shot provider query
// that prints matches without starting the server.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the movie catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().String("api-key", "", "Catalog provider API key (or MARQUEE_API_KEY)")
	cmd.Flags().String("catalog-url", "", "Catalog provider base URL")
	cmd.Flags().String("format", "text", "Output format: json | text")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return exitError(exitValidation, "search query is empty")
	}

	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "text" {
		return exitError(exitValidation, "unknown format %q (want json or text)", format)
	}

	apiKey, _ := cmd.Flags().GetString("api-key")
	if apiKey == "" {
		apiKey = os.Getenv("MARQUEE_API_KEY")
	}
	if apiKey == "" {
		return exitError(exitValidation, "catalog api key is required (--api-key or MARQUEE_API_KEY)")
	}

	baseURL, _ := cmd.Flags().GetString("catalog-url")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client, err := catalog.NewClient(catalog.Config{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	movies, err := client.Search(ctx, query)
	if err != nil {
		return exitError(exitProvider, "search failed: %v", err)
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(movies)
	}

	if len(movies) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	for _, m := range movies {
		year := ""
		if len(m.ReleaseDate) >= 4 {
			year = " (" + m.ReleaseDate[:4] + ")"
		}
		fmt.Fprintf(out, "%8d  %-40s%s  %.1f\n", m.ID, m.Title, year, m.VoteAverage)
	}
	return nil
}
