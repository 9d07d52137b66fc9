// Package judge0 is a thin client for a Judge0-compatible code execution service.
//
// The service does the sandboxing and the waiting (?wait=true); from our side a
// submission is one blocking HTTP round trip. Transport problems never escape
// as errors: they become results labeled "API Error".
package judge0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/lesson-runner/internal/executor"
)

// statusAccepted is Judge0's status.id for a run that finished successfully.
const statusAccepted = 3

// maxErrorBody caps how much of a non-2xx body ends up in an error message.
const maxErrorBody = 4 << 10

var _ executor.Executor = (*Client)(nil)

// SubmitRequest is one piece of code to run remotely.
type SubmitRequest struct {
	Source         string
	Stdin          string
	LanguageID     int
	TimeoutSeconds int
}

// LanguageDescriptor is one entry of GET /languages.
type LanguageDescriptor struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived,omitempty"`
}

type submissionBody struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionStatus struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

type submissionResponse struct {
	Stdout        *string           `json:"stdout"`
	Stderr        *string           `json:"stderr"`
	CompileOutput *string           `json:"compile_output"`
	Message       *string           `json:"message"`
	Time          *seconds          `json:"time"`
	Memory        *float64          `json:"memory"`
	Token         string            `json:"token"`
	Status        *submissionStatus `json:"status"`
}

// seconds accepts both "0.012" and 0.012; Judge0 versions disagree.
type seconds float64

func (s *seconds) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parsing time %q: %w", raw, err)
	}
	*s = seconds(v)
	return nil
}

// Client talks to the remote execution service. One Client reuses one
// *http.Client across calls and keeps no per-execution state.
type Client struct {
	baseURL string
	config  Config
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client. No connection is made until the first call.
func New(cfg Config, logger *slog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.LanguageID == 0 {
		cfg.LanguageID = defaults.LanguageID
	}
	if cfg.HTTPSlack <= 0 {
		cfg.HTTPSlack = defaults.HTTPSlack
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaults.ProbeTimeout
	}

	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if cfg.BearerToken != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		http:    &http.Client{Transport: transport},
		logger:  logger,
	}
}

// BaseURL returns the normalized service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute adapts Submit to the executor.Executor interface.
func (c *Client) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	return c.Submit(ctx, SubmitRequest{
		Source:         req.Source,
		Stdin:          req.Stdin,
		LanguageID:     req.LanguageID,
		TimeoutSeconds: req.EffectiveTimeoutSeconds(),
	}), nil
}

// Submit creates a submission and waits for the verdict. Exactly one HTTP
// request is made; there are no retries.
func (c *Client) Submit(ctx context.Context, sub SubmitRequest) *executor.ExecutionResult {
	start := time.Now()
	res := c.submit(ctx, sub)
	res.Mode = executor.ModeRemote
	res.Duration = time.Since(start)
	return res
}

func (c *Client) submit(ctx context.Context, sub SubmitRequest) *executor.ExecutionResult {
	languageID := sub.LanguageID
	if languageID == 0 {
		languageID = c.config.LanguageID
	}
	timeout := executor.ExecutionRequest{TimeoutSeconds: sub.TimeoutSeconds}.Timeout() + c.config.HTTPSlack

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(submissionBody{
		SourceCode: sub.Source,
		LanguageID: languageID,
		Stdin:      sub.Stdin,
	})
	if err != nil {
		return apiError(err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/submissions?wait=true", bytes.NewReader(payload))
	if err != nil {
		return apiError(err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("submitting to remote executor",
		slog.String("url", c.baseURL),
		slog.Int("languageId", languageID),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote submission failed", slog.String("error", err.Error()))
		return apiError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		c.logger.Warn("remote submission rejected", slog.String("error", err.Error()))
		return apiError(err)
	}

	var body submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return apiError(fmt.Errorf("decoding submission response: %w", err))
	}
	if body.Status == nil {
		return apiError(fmt.Errorf("submission response has no status"))
	}

	return normalize(body)
}

// normalize maps Judge0's response onto an ExecutionResult.
func normalize(body submissionResponse) *executor.ExecutionResult {
	res := &executor.ExecutionResult{
		Success:     body.Status.ID == statusAccepted,
		Stdout:      deref(body.Stdout),
		StatusLabel: body.Status.Description,
		Token:       body.Token,
	}
	if res.StatusLabel == "" {
		res.StatusLabel = fmt.Sprintf("Status %d", body.Status.ID)
	}

	// stderr wins over compile_output; message is Judge0's own diagnostic.
	if !res.Success {
		for _, s := range []*string{body.Stderr, body.CompileOutput, body.Message} {
			if v := deref(s); v != "" {
				res.Stderr = v
				break
			}
		}
	}

	if body.Time != nil {
		ms := float64(*body.Time) * 1000
		res.TimeMillis = &ms
	}
	if body.Memory != nil {
		kb := int64(*body.Memory)
		res.MemoryKB = &kb
	}
	return res
}

// SubmitFile reads a source file and submits it with the default language.
func (c *Client) SubmitFile(ctx context.Context, path, stdin string, timeoutSeconds int) *executor.ExecutionResult {
	source, err := os.ReadFile(path)
	if err != nil {
		return executor.Failure(executor.ModeRemote, executor.StatusFileError, fmt.Sprintf("Error reading file: %v", err))
	}
	return c.Submit(ctx, SubmitRequest{Source: string(source), Stdin: stdin, TimeoutSeconds: timeoutSeconds})
}

// HealthCheck reports whether GET /about answers 200. It never fails loudly.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/about", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote health check failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	return resp.StatusCode == http.StatusOK
}

// ListLanguages returns the languages the service supports.
func (c *Client) ListLanguages(ctx context.Context) ([]LanguageDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/languages", nil)
	if err != nil {
		return nil, fmt.Errorf("judge0: building languages request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("judge0: listing languages: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, fmt.Errorf("judge0: listing languages: %w", err)
	}

	var langs []LanguageDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&langs); err != nil {
		return nil, fmt.Errorf("judge0: decoding languages: %w", err)
	}
	return langs, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.config.AuthToken != "" {
		req.Header.Set("X-Auth-Token", c.config.AuthToken)
	}
	return req, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("unexpected HTTP status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func apiError(err error) *executor.ExecutionResult {
	return executor.Failure(executor.ModeRemote, executor.StatusAPIError, fmt.Sprintf("Judge0 API error: %v", err))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
