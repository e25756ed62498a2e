package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tierd/internal/config"
	"tierd/pkg/types"
)

type askFlags struct {
	server  string
	domain  string
	yes     bool
	timeout time.Duration
}

func newAskCmd() *cobra.Command {
	f := &askFlags{}
	cmd := &cobra.Command{
		Use:     "ask <text>",
		Short:   "Send one query to a running server",
		Example: "  tierd ask \"integrate x^2\" --domain math\n  tierd ask --yes=false \"what is a monad\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), f, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&f.server, "server", "http://"+envOr("TIERD_ADDR", config.DefaultAddr)+"/api", "Query API URL")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Domain hint for specialist selection")
	cmd.Flags().BoolVar(&f.yes, "yes", true, "Confirm diving deeper when the server asks")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Minute, "Per-request timeout")
	return cmd
}

// runAsk prints the answer, or the server's prompt when a deeper dive is
// offered and not confirmed. An error status becomes a returned error.
func runAsk(ctx context.Context, f *askFlags, text string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client := &http.Client{Timeout: f.timeout}
	resp, err := postQuery(ctx, client, f.server, types.QueryRequest{Text: text, Domain: f.domain})
	if err != nil {
		return err
	}
	if resp.Status == types.StatusNeedsDeeper {
		if !f.yes {
			fmt.Fprintln(out, resp.Prompt)
			return nil
		}
		resp, err = postQuery(ctx, client, f.server, types.QueryRequest{Text: text, Domain: f.domain, DiveConfirmed: true})
		if err != nil {
			return err
		}
	}
	switch resp.Status {
	case types.StatusOK:
		fmt.Fprintln(out, resp.Answer)
		return nil
	case types.StatusError:
		return fmt.Errorf("server: %s", resp.Message)
	default:
		return fmt.Errorf("unexpected response status %q", resp.Status)
	}
}

func postQuery(ctx context.Context, client *http.Client, url string, q types.QueryRequest) (types.QueryResponse, error) {
	var out types.QueryResponse
	body, err := json.Marshal(q)
	if err != nil {
		return out, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return out, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return out, fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}
