package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/warpfork/go-errcat"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/object"
)

// resolveCandidateLimit bounds how many recent update-ref records are
// compared when resolving one ref.
const resolveCandidateLimit = 10

// RefValue is the payload of an update-ref record. OID is empty when the
// ref does not exist.
type RefValue struct {
	OID        object.ID `json:"oid"`
	NumCommits int       `json:"numCommits"`
}

// Exists reports whether the ref resolved to an object.
func (v RefValue) Exists() bool {
	return v.OID != ""
}

// ResolveRef returns the value of ref from its most recent update-ref
// record. A ref with no records resolves to the zero RefValue without error.
func (c *Client) ResolveRef(ctx context.Context, ref string) (RefValue, error) {
	if ref == "" {
		return RefValue{}, errcat.Errorf(ledger.ErrUsage, "resolve ref: ref name is required")
	}

	candidates, err := c.gateway.Query(ctx, resolveCandidateLimit,
		ledger.TagFilter(TagType, TypeUpdateRef),
		ledger.TagFilter(TagRef, ref),
	)
	if err != nil {
		return RefValue{}, fmt.Errorf("query update-ref candidates for ref %q: %w", ref, err)
	}
	if len(candidates) == 0 {
		c.log.Debug().Str("ref", ref).Msg("ref has no update records")
		return RefValue{}, nil
	}

	head := rankUpdates(candidates)[0]
	raw, err := c.fetcher.Fetch(ctx, head.ID, ledger.ModeText)
	if err != nil {
		return RefValue{}, fmt.Errorf("fetch update-ref %s for ref %q: %w", head.ID, ref, err)
	}
	var v RefValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return RefValue{}, fmt.Errorf("decode update-ref %s for ref %q: %w", head.ID, ref, err)
	}

	c.log.Debug().
		Str("ref", ref).
		Str("record", head.ID).
		Int("candidates", len(candidates)).
		Str("oid", string(v.OID)).
		Msg("resolved ref")
	return v, nil
}

// ListRefs discovers every ref name in the repository and resolves each one.
// Refs with no object map to an empty id. A failure resolving any ref fails
// the whole listing.
func (c *Client) ListRefs(ctx context.Context) (map[string]object.ID, error) {
	records, err := c.gateway.Query(ctx, ledger.Unbounded, ledger.TagFilter(TagType, TypeUpdateRef))
	if err != nil {
		return nil, fmt.Errorf("query update-ref records: %w", err)
	}
	names := refNames(records)

	var mu sync.Mutex
	refs := make(map[string]object.ID, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for _, name := range names {
		g.Go(func() error {
			v, err := c.ResolveRef(gctx, name)
			if err != nil {
				return err
			}
			mu.Lock()
			refs[name] = v.OID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return refs, nil
}

// refNames returns the distinct Ref tag values in first-seen order, exactly
// as tagged. Only the first Ref tag of a record counts.
func refNames(records []ledger.Record) []string {
	seen := make(map[string]struct{}, len(records))
	var names []string
	for _, rec := range records {
		name, ok := rec.Tags.Get(TagRef)
		if !ok || name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
