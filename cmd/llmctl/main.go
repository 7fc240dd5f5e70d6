// Package main implements llmctl, a command-line client for the llmsearch
// HTTP API.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/llmsearch/internal/http"
	"github.com/fyrsmithlabs/llmsearch/internal/search"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the flags shared by every command.
type options struct {
	server  string
	token   string
	timeout time.Duration
}

func (o *options) client() *client {
	return &client{
		base: strings.TrimRight(o.server, "/"),
		http: &http.Client{Timeout: o.timeout},
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "llmctl",
		Short: "CLI for the llmsearch HTTP API",
		Long: `llmctl talks to a running llmsearch server. It can check health,
embed texts and run searches.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.server, "server", "http://localhost:8000", "llmsearch server URL")
	root.PersistentFlags().StringVar(&o.token, "token", os.Getenv("LLMSEARCH_TOKEN"), "access token for unmasked search results (env LLMSEARCH_TOKEN)")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(newHealthCmd(o), newEmbedCmd(o), newSearchCmd(o))
	return root
}

func newHealthCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check llmsearch server health",
		Long: `Check the health status of the llmsearch HTTP server.

Examples:
  # Check health
  llmctl health

  # Check health on a different server
  llmctl health --server http://localhost:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.HealthResponse
			if err := o.client().do(cmd.Context(), http.MethodGet, "/test/health", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", resp.Status)
			fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", o.server)
			return nil
		},
	}
}

func newEmbedCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed texts and print the vectors as JSON",
		Long: `Embed texts given as arguments, or one per line on stdin.

Examples:
  llmctl embed "bonjour" "mairie de Lyon"
  cat queries.txt | llmctl embed -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := readTexts(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			var resp httpapi.EmbeddingResponse
			if err := o.client().do(cmd.Context(), http.MethodPost, "/test/embed", httpapi.EmbeddingRequest{Texts: texts}, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func newSearchCmd(o *options) *cobra.Command {
	var (
		limit int
		mode  string
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the vector database",
		Long: `Search for the records closest to text. Results are masked unless
--token matches the server's configured token.

Examples:
  llmctl search "mairie" --limit 5
  llmctl search "contact" --mode keyword --token $LLMSEARCH_TOKEN`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := searchPath(mode)
			if err != nil {
				return err
			}
			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if encoded := q.Encode(); encoded != "" {
				path += "?" + encoded
			}

			c := o.client()
			c.token = o.token
			var resp httpapi.SearchResponse
			if err := c.do(cmd.Context(), http.MethodPost, path, httpapi.EmbeddingRequest{Texts: args}, &resp); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp.Results)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of results (server default when 0)")
	cmd.Flags().StringVar(&mode, "mode", "cosine", "search endpoint: cosine or keyword")
	return cmd
}

func searchPath(mode string) (string, error) {
	switch mode {
	case "cosine", search.ModeCosine:
		return "/search/" + search.ModeCosine, nil
	case "keyword", search.ModeKeyword:
		return "/search/" + search.ModeKeyword, nil
	default:
		return "", fmt.Errorf("unknown search mode %q (use cosine or keyword)", mode)
	}
}

// readTexts returns args, or stdin lines when args is empty or "-".
func readTexts(stdin io.Reader, args []string) ([]string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return args, nil
	}
	var texts []string
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts to embed")
	}
	return texts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// client is a minimal JSON client for the API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	target := c.base + path
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr httpapi.ErrorResponse
		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Detail)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
