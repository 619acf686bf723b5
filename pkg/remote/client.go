package remote

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/odvcencio/gitweave/pkg/bundle"
	"github.com/odvcencio/gitweave/pkg/ledger"
)

// PayloadFetcher downloads record payloads, owning retry and backoff.
// *ledger.Client implements it.
type PayloadFetcher interface {
	Fetch(ctx context.Context, id string, mode ledger.FetchMode) ([]byte, error)
}

// Unbundler splits envelope payloads into items and decodes them.
// Unbundle must fail with ledger.ErrBundleCorrupt on malformed input.
// bundle.Decoder implements it.
type Unbundler interface {
	Unbundle(raw []byte) ([]bundle.Item, error)
	DecodeData(item bundle.Item) ([]byte, error)
	DecodeTag(item bundle.Item, i int) (ledger.Tag, error)
}

// Options configures a Client.
type Options struct {
	// ProtocolVersion selects the Version tag to query (default DefaultProtocolVersion).
	ProtocolVersion string
	// Concurrency caps simultaneous bundle downloads and ref resolutions.
	// Zero or negative means unbounded.
	Concurrency int
	// StrictItems makes an undecodable item inside a readable bundle fail the
	// whole fetch instead of being skipped.
	StrictItems bool
	// Unbundler replaces the default ANS-102 decoder.
	Unbundler Unbundler
	Logger    *zerolog.Logger
}

// Client resolves the state of one ledger-backed repository. It holds no
// state between calls; every operation re-queries the gateway.
type Client struct {
	repo        Repository
	gateway     *Gateway
	fetcher     PayloadFetcher
	unbundler   Unbundler
	concurrency int
	strictItems bool
	log         zerolog.Logger
}

// New creates a Client for repo on top of a query service and a payload fetcher.
func New(repo Repository, querier TransactionQuerier, fetcher PayloadFetcher, opts Options) *Client {
	unbundler := opts.Unbundler
	if unbundler == nil {
		unbundler = bundle.Decoder{}
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		repo:        repo,
		gateway:     NewGateway(querier, repo, opts.ProtocolVersion),
		fetcher:     fetcher,
		unbundler:   unbundler,
		concurrency: opts.Concurrency,
		strictItems: opts.StrictItems,
		log:         logger.With().Str("repo", repo.String()).Logger(),
	}
}

// NewClient parses remoteURI and creates a Client that uses lc both for
// queries and for payload downloads.
func NewClient(remoteURI string, lc *ledger.Client, opts Options) (*Client, error) {
	repo, err := ParseRepository(remoteURI)
	if err != nil {
		return nil, err
	}
	return New(repo, lc, lc, opts), nil
}

// Repository returns the repository identity.
func (c *Client) Repository() Repository {
	return c.repo
}

// ProtocolVersion returns the Version tag the client queries.
func (c *Client) ProtocolVersion() string {
	return c.gateway.Version()
}
