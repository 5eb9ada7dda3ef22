package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/trustbuild-labs/trustbuild-go/internal/platform/env"
)

const watsonxAPIVersion = "2024-05-31"

type Config struct {
	BaseURL    string
	APIKey     string
	TokenURL   string
	ProjectID  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("TRUSTBUILD_TEXTGEN_TIMEOUT", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	maxRetries, err := env.Int("TRUSTBUILD_TEXTGEN_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		BaseURL:    env.String("TRUSTBUILD_WATSONX_URL", "https://us-south.ml.cloud.ibm.com"),
		APIKey:     env.String("TRUSTBUILD_WATSONX_API_KEY", ""),
		TokenURL:   env.String("TRUSTBUILD_IAM_TOKEN_URL", "https://iam.cloud.ibm.com/identity/token"),
		ProjectID:  env.String("TRUSTBUILD_WATSONX_PROJECT_ID", ""),
		Model:      env.String("TRUSTBUILD_WATSONX_MODEL", "ibm/granite-13b-instruct-v2"),
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
	return cfg, nil
}

// Live reports whether watsonx credentials are configured. Without them
// the service falls back to the deterministic simulator.
func (c Config) Live() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("base url is required")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("api key is required")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		return errors.New("token url is required")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("project id is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model is required")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// Client calls the watsonx.ai text-generation endpoint. Bearer tokens are
// minted from the IAM api key through an oauth2 token source and reused
// until expiry.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	source := oauth2.ReuseTokenSource(nil, &iamTokenSource{
		tokenURL: cfg.TokenURL,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: 15 * time.Second},
	})
	client := oauth2.NewClient(context.Background(), source)
	client.Timeout = cfg.Timeout
	return &Client{cfg: cfg, client: client}, nil
}

func (c *Client) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	body, err := json.Marshal(map[string]any{
		"model_id":   c.cfg.Model,
		"project_id": c.cfg.ProjectID,
		"input":      buildSchemaPrompt(req),
		"parameters": map[string]any{
			"decoding_method": "greedy",
			"max_new_tokens":  maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/ml/v1/text/generation?version=" + watsonxAPIVersion

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		raw, retryable, err := c.generateOnce(ctx, endpoint, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) generateOnce(ctx context.Context, endpoint string, body []byte) (json.RawMessage, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("text generation call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("text generation status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		Results []struct {
			GeneratedText string `json:"generated_text"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, false, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Results) == 0 {
		return nil, false, fmt.Errorf("%w: empty result set", ErrMalformedOutput)
	}
	raw, err := ExtractJSON(decoded.Results[0].GeneratedText)
	if err != nil {
		return nil, false, err
	}
	return raw, false, nil
}

func buildSchemaPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(req.Prompt)
	b.WriteString("\n\nRespond with a single JSON object conforming to this JSON schema, with no surrounding prose:\n")
	b.Write(req.Schema)
	return b.String()
}

// iamTokenSource exchanges an IBM Cloud IAM api key for a bearer token.
type iamTokenSource struct {
	tokenURL string
	apiKey   string
	client   *http.Client
}

func (s *iamTokenSource) Token() (*oauth2.Token, error) {
	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {s.apiKey},
	}
	resp, err := s.client.PostForm(s.tokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("iam token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read iam response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("iam token status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode iam response: %w", err)
	}
	if decoded.AccessToken == "" {
		return nil, errors.New("iam response missing access token")
	}
	return &oauth2.Token{
		AccessToken: decoded.AccessToken,
		TokenType:   decoded.TokenType,
		Expiry:      time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second),
	}, nil
}
