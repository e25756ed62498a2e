// Package llm talks to llama.cpp-style completion servers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tierd/pkg/types"
)

// Params tunes one completion call.
type Params struct {
	NPredict    int
	Temperature float64
	CachePrompt bool
	Timeout     time.Duration // 0 means the caller's context only
}

// Presets per tier.
var (
	GatekeeperParams = Params{NPredict: 256, Temperature: 0.7, CachePrompt: true, Timeout: 30 * time.Second}
	LibrarianParams  = Params{NPredict: 128, Temperature: 0.3, Timeout: 25 * time.Second}
	SpecialistParams = Params{NPredict: 512, Temperature: 0.7, Timeout: 60 * time.Second}
)

// Completer produces a completion for prompt from model. An empty string
// means the model had nothing usable to say, including transport failures.
type Completer interface {
	Complete(ctx context.Context, model types.ModelDescriptor, prompt string, p Params) string
}

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict"`
	Temperature float64 `json:"temperature"`
	CachePrompt bool    `json:"cache_prompt,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
	Text    string `json:"text"`
}

// Client is an HTTP Completer. The zero value is not usable; use NewClient.
type Client struct {
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a Client with a dialer bounded by connectTimeout. Request
// deadlines come from Params and the caller's context.
func NewClient(connectTimeout time.Duration, logger *zerolog.Logger) *Client {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	}
	c := &Client{http: &http.Client{Transport: tr}, log: zerolog.Nop()}
	if logger != nil {
		c.log = logger.With().Str("component", "llm").Logger()
	}
	return c
}

// Endpoint returns the completion URL of model.
func Endpoint(model types.ModelDescriptor) string {
	host := model.Host
	if host == "" {
		host = types.DefaultHost
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(model.Port)) + "/completion"
}

// Complete posts prompt to the model's /completion endpoint and returns the
// trimmed "content" field, or "text" when content is empty. Failures are
// logged and yield "".
func (c *Client) Complete(ctx context.Context, model types.ModelDescriptor, prompt string, p Params) string {
	start := time.Now()
	out, err := c.complete(ctx, model, prompt, p)
	if err != nil {
		c.log.Warn().Err(err).Str("model", model.Name).Str("role", string(model.Role)).
			Dur("dur", time.Since(start)).Msg("completion failed")
		return ""
	}
	c.log.Debug().Str("model", model.Name).Int("chars", len(out)).Dur("dur", time.Since(start)).Msg("completion")
	return out
}

func (c *Client) complete(ctx context.Context, model types.ModelDescriptor, prompt string, p Params) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	body, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		NPredict:    p.NPredict,
		Temperature: p.Temperature,
		CachePrompt: p.CachePrompt,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, Endpoint(model), bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("completion http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	text := out.Content
	if text == "" {
		text = out.Text
	}
	if text = strings.TrimSpace(text); text == "" {
		return "", errors.New("empty completion")
	}
	return text, nil
}
