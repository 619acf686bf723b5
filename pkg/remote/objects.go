package remote

import (
	"context"
	"fmt"

	"github.com/warpfork/go-errcat"

	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/object"
)

// LocateObject returns the id of the git-object record that stored oid.
// The oid is an opaque key matched against Oid tags as given. It fails with
// ledger.ErrObjectNotFound when no record matches.
func (c *Client) LocateObject(ctx context.Context, oid object.ID) (string, error) {
	if oid == "" {
		return "", errcat.Errorf(ledger.ErrUsage, "locate object: object id is required")
	}
	records, err := c.gateway.Query(ctx, 1,
		ledger.TagFilter(TagType, TypeGitObject),
		ledger.TagFilter(TagOid, string(oid)),
	)
	if err != nil {
		return "", fmt.Errorf("query git-object record for %s: %w", oid, err)
	}
	if len(records) == 0 {
		return "", errcat.Errorf(ledger.ErrObjectNotFound, "object %s not found in %s", oid, c.repo)
	}
	return records[0].ID, nil
}

// FetchObject locates oid's record and downloads its payload.
func (c *Client) FetchObject(ctx context.Context, oid object.ID) (object.Object, error) {
	id, err := c.LocateObject(ctx, oid)
	if err != nil {
		return object.Object{}, err
	}
	data, err := c.fetcher.Fetch(ctx, id, ledger.ModeRaw)
	if err != nil {
		return object.Object{}, fmt.Errorf("fetch object %s from record %s: %w", oid, id, err)
	}
	return object.Object{OID: oid, Data: data}, nil
}
