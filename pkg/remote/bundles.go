package remote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/warpfork/go-errcat"
	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/gitweave/pkg/bundle"
	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/object"
)

type fetchStats struct {
	corruptBundles atomic.Int64
	skippedItems   atomic.Int64
}

// FetchObjects downloads every objects bundle of the repository and returns
// the Oid-tagged items they contain.
//
// Bundles are fetched concurrently, up to the configured concurrency. A
// bundle that cannot be unbundled contributes no objects and the fetch
// carries on; a bundle whose payload cannot be downloaded fails the fetch.
// progress advances once per bundle, corrupt or not, and is always closed
// with Done. Objects come back in no particular order and are not
// de-duplicated across bundles.
func (c *Client) FetchObjects(ctx context.Context, progress Progress) (objs []object.Object, err error) {
	if progress == nil {
		progress = NopProgress{}
	}
	bundles, err := c.gateway.Query(ctx, ledger.Unbounded, ledger.TagFilter(TagType, TypeObjectsBundle))
	if err != nil {
		return nil, fmt.Errorf("query %s records: %w", TypeObjectsBundle, err)
	}

	progress.Start(len(bundles))
	defer func() { progress.Done(err) }()

	var (
		mu    sync.Mutex
		stats fetchStats
	)
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for _, rec := range bundles {
		g.Go(func() error {
			found, err := c.fetchBundle(gctx, rec.ID, &stats)
			if err != nil {
				return err
			}
			mu.Lock()
			objs = append(objs, found...)
			mu.Unlock()
			progress.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.log.Info().
		Int("bundles", len(bundles)).
		Int64("corrupt_bundles", stats.corruptBundles.Load()).
		Int64("skipped_items", stats.skippedItems.Load()).
		Int("objects", len(objs)).
		Msg("fetched objects")
	return objs, nil
}

// fetchBundle downloads and unpacks one bundle into a locally owned slice.
// The payload is fetched raw so that anything wrong with its content is
// judged by the unbundler. A payload that arrived but could not be decoded
// (oversized or bad compression) counts as corrupt too; only a failed
// download is fatal.
func (c *Client) fetchBundle(ctx context.Context, id string, stats *fetchStats) ([]object.Object, error) {
	raw, err := c.fetcher.Fetch(ctx, id, ledger.ModeRaw)
	if err != nil {
		if ledger.CategoryOf(err) != ledger.ErrPayloadInvalid {
			return nil, fmt.Errorf("fetch bundle %s: %w", id, err)
		}
		stats.corruptBundles.Add(1)
		c.log.Warn().Err(err).Str("bundle", id).Msg("skipping unreadable bundle")
		return nil, nil
	}

	items, err := c.unbundler.Unbundle(raw)
	if err != nil {
		if ledger.CategoryOf(err) != ledger.ErrBundleCorrupt {
			return nil, fmt.Errorf("unbundle %s: %w", id, err)
		}
		stats.corruptBundles.Add(1)
		c.log.Warn().Err(err).Str("bundle", id).Msg("skipping corrupt bundle")
		return nil, nil
	}

	var out []object.Object
	for i, item := range items {
		obj, ok, err := c.extractObject(item)
		if err != nil {
			if c.strictItems {
				return nil, errcat.Errorf(ledger.ErrItemDecodeFailed, "decode item %d (%s) of bundle %s: %v", i, item.ID, id, err)
			}
			stats.skippedItems.Add(1)
			c.log.Warn().Err(err).Str("bundle", id).Int("item", i).Msg("skipping undecodable item")
			continue
		}
		if ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// extractObject decodes item and returns it as an object when it carries an
// Oid tag. The first Oid tag wins.
func (c *Client) extractObject(item bundle.Item) (object.Object, bool, error) {
	data, err := c.unbundler.DecodeData(item)
	if err != nil {
		return object.Object{}, false, err
	}
	for i := range item.Tags {
		tag, err := c.unbundler.DecodeTag(item, i)
		if err != nil {
			return object.Object{}, false, err
		}
		if tag.Name == TagOid {
			return object.Object{OID: object.ID(tag.Value), Data: data}, true, nil
		}
	}
	return object.Object{}, false, nil
}
