package remote

import (
	"context"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

// Tag names used on repository records.
const (
	TagType     = "Type"
	TagRepo     = "Repo"
	TagVersion  = "Version"
	TagRef      = "Ref"
	TagOid      = "Oid"
	TagUnixTime = "Unix-Time"
)

// Record types.
const (
	TypeUpdateRef     = "update-ref"
	TypeGitObject     = "git-object"
	TypeObjectsBundle = "git-objects-bundle"
)

// DefaultProtocolVersion is the Version tag written by current clients.
const DefaultProtocolVersion = "0.0.2"

// TransactionQuerier runs queries against a ledger indexing service.
// *ledger.Client implements it.
type TransactionQuerier interface {
	Transactions(ctx context.Context, q ledger.Query) ([]ledger.Record, error)
}

// Gateway scopes queries to one repository and protocol version. Records
// tagged with any other version are invisible to it.
type Gateway struct {
	querier TransactionQuerier
	repo    Repository
	version string
}

// NewGateway returns a gateway for repo. An empty version selects
// DefaultProtocolVersion.
func NewGateway(querier TransactionQuerier, repo Repository, version string) *Gateway {
	if version == "" {
		version = DefaultProtocolVersion
	}
	return &Gateway{querier: querier, repo: repo, version: version}
}

// Version returns the protocol version the gateway filters on.
func (g *Gateway) Version() string {
	return g.version
}

// Query returns up to limit records owned by the repository owner that carry
// every filter plus the repository's Repo and Version tags.
func (g *Gateway) Query(ctx context.Context, limit int, filters ...ledger.Filter) ([]ledger.Record, error) {
	tags := make([]ledger.Filter, 0, len(filters)+2)
	tags = append(tags, filters...)
	tags = append(tags,
		ledger.TagFilter(TagRepo, g.repo.Name),
		ledger.TagFilter(TagVersion, g.version),
	)
	return g.querier.Transactions(ctx, ledger.Query{
		Owners: []string{g.repo.Owner},
		Tags:   tags,
		Limit:  limit,
	})
}
