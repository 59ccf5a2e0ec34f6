// Package ollama talks to a local Ollama server through /api/generate
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
)

const (
	defaultBaseURL = "http://localhost:11434"
	defaultModel   = "llama3.2-vision"

	// cap on the reply body we are willing to buffer
	maxReplyBytes = 4 << 20
)

// Config selects the server and model
type Config struct {
	BaseURL string
	Model   string
	// Timeout bounds a single request, 0 leaves it to the caller's context
	Timeout time.Duration
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
	Format string   `json:"format,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Client is a non streaming /api/generate caller
type Client struct {
	baseURL string
	model   string
	hc      *http.Client
	log     *logger.Logger
}

// New builds a client, empty fields fall back to the local defaults
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		baseURL: base,
		model:   model,
		hc:      &http.Client{Timeout: cfg.Timeout},
		log:     logger.Named("ollama"),
	}
}

// Model returns the configured model name
func (c *Client) Model() string { return c.model }

// Generate sends prompt plus any images and returns the raw reply text
func (c *Client) Generate(ctx context.Context, prompt string, images ...[]byte) (string, error) {
	req := generateRequest{Model: c.model, Prompt: prompt, Stream: false}
	for _, img := range images {
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(img))
	}
	return c.do(ctx, req)
}

// GenerateJSON asks the server for JSON output and returns the first JSON
// object found in the reply
func (c *Client) GenerateJSON(ctx context.Context, prompt string, images ...[]byte) (json.RawMessage, error) {
	req := generateRequest{Model: c.model, Prompt: prompt, Stream: false, Format: "json"}
	for _, img := range images {
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(img))
	}
	text, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "ollama reply carried no json object")
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "marshal ollama request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "build ollama request")
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "ollama request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeUnavailable, "read ollama reply")
	}
	if resp.StatusCode != http.StatusOK {
		return "", perr.Newf(perr.ErrorCodeUnavailable, "ollama request failed with status: %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "unmarshal ollama reply")
	}
	if out.Error != "" {
		return "", perr.Newf(perr.ErrorCodeUnavailable, "ollama: %s", out.Error)
	}

	c.log.Debug().
		Str("model", c.model).
		Int("images", len(body.Images)).
		Dur("elapsed", time.Since(start)).
		Int("reply_bytes", len(out.Response)).
		Msg("generate complete")
	return out.Response, nil
}

// ExtractJSON returns the first balanced JSON object in text
// braces inside string literals are ignored
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := matchBrace(text, start); end > 0 {
			cand := text[start:end]
			if json.Valid([]byte(cand)) {
				return json.RawMessage(cand), nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, perr.New(perr.ErrorCodeJSON, "no json object found in text")
}

// matchBrace returns the index just past the brace closing text[start], or -1
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}
