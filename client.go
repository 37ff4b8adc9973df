package gptbatch

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultMaxConnections caps the connection pool when Config.MaxConnections is zero.
	DefaultMaxConnections = 10
	// DefaultAPIKeyEnv is consulted when Config.APIKey is empty.
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
	// DefaultModel is sent with every request unless Config.Model says otherwise.
	DefaultModel = "qwen-max"
	// NoResponse is returned by Client.Complete when the endpoint answers without choices.
	NoResponse = "no response returned"
)

// ErrConfiguration: Matched by every error NewClient returns.
var ErrConfiguration = errors.New("gptbatch: invalid configuration")

// ConfigurationError: Describes why a Client could not be built. errors.Is(err, ErrConfiguration) holds for it.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return ErrConfiguration.Error() + ": " + e.Reason
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Config: Settings for NewClient. Zero values fall back to the defaults above.
type Config struct {
	MaxConnections int
	APIKey         string
	APIKeyEnv      string
	BaseURL        string
	Model          string
	RequestTimeout time.Duration
}

func (c *Config) defaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
}

// Client: A Completer backed by go-openai whose HTTP transport never holds more than MaxConnections connections.
type Client struct {
	API            *openai.Client
	Model          string
	MaxConnections int

	transport *http.Transport
}

// NewClient: Resolves the API key (explicit first, then the environment), builds the connection limited transport and wraps it in an openai.Client.
func NewClient(cfg Config) (*Client, error) {
	cfg.defaults()

	if cfg.MaxConnections < 1 {
		return nil, &ConfigurationError{Reason: "max connections must be positive"}
	}

	key := cfg.APIKey
	if key == "" {
		key = strings.TrimSpace(os.Getenv(cfg.APIKeyEnv))
	}
	if key == "" {
		return nil, &ConfigurationError{Reason: "no API key given and " + cfg.APIKeyEnv + " is not set"}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = cfg.MaxConnections
	transport.MaxIdleConns = cfg.MaxConnections
	transport.MaxIdleConnsPerHost = cfg.MaxConnections
	// HTTP/2 would multiplex every request over one connection and defeat the cap.
	transport.ForceAttemptHTTP2 = false
	transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}

	apiConfig := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	apiConfig.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   cfg.RequestTimeout,
	}

	return &Client{
		API:            openai.NewClientWithConfig(apiConfig),
		Model:          cfg.Model,
		MaxConnections: cfg.MaxConnections,
		transport:      transport,
	}, nil
}

// Complete: Sends the instruction as the system message and input as the user message, returning the trimmed content of the first choice.
func (c *Client) Complete(ctx context.Context, instruction, input string) (string, error) {
	resp, err := c.API.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: instruction,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: input,
			},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return NoResponse, nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Close releases the idle connections held by the pool.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}
