package ledger

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultGatewayURL is the public gateway used when none is configured.
const DefaultGatewayURL = "https://arweave.net"

// Response limits per endpoint type.
const (
	responseLimitQuery = 32 << 20 // 32MB
	// DefaultMaxPayloadBytes caps a decoded record payload.
	DefaultMaxPayloadBytes = 256 << 20 // 256MB
)

// ClientOptions configures the gateway client.
type ClientOptions struct {
	Timeout     time.Duration // HTTP client timeout (default 60s)
	MaxAttempts int           // retry attempts (default 3)
	RetryDelay  time.Duration // first backoff delay (default 1s)
	PageSize    int           // records per GraphQL page (default 100)
	GraphQLPath string        // default "/graphql"
	// MaxPayloadBytes caps a payload after decompression (default 256MB).
	MaxPayloadBytes int64

	// HTTPClient replaces the client built from Timeout.
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client talks to a ledger gateway: GraphQL queries against its indexing
// service and payload downloads by record id.
type Client struct {
	baseURL     string
	graphqlURL  string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	pageSize    int
	maxPayload  int64
	log         zerolog.Logger
}

// NewClient creates a gateway client for baseURL (e.g. https://arweave.net).
// Zero-value or negative fields in opts receive defaults.
func NewClient(baseURL string, opts ClientOptions) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultGatewayURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gateway URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("gateway URL %q has no host", baseURL)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if strings.TrimSpace(opts.GraphQLPath) == "" {
		opts.GraphQLPath = "/graphql"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	base := strings.TrimRight(u.String(), "/")
	return &Client{
		baseURL:     base,
		graphqlURL:  base + "/" + strings.TrimLeft(opts.GraphQLPath, "/"),
		httpClient:  httpClient,
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		pageSize:    opts.PageSize,
		maxPayload:  opts.MaxPayloadBytes,
		log:         logger,
	}, nil
}

// BaseURL returns the normalized gateway URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) policy() retryPolicy {
	return retryPolicy{maxAttempts: c.maxAttempts, delay: c.retryDelay}
}
