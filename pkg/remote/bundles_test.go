package remote

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gitweave/pkg/bundle"
	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/ledger/ledgertest"
	"github.com/odvcencio/gitweave/pkg/object"
)

func rawBundle(id string, height int64, payload string) ledgertest.Record {
	return ledgertest.Record{ID: id, Height: height, Tags: repoTags(TypeObjectsBundle), Data: []byte(payload)}
}

func sortedObjects(objs []object.Object) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, string(o.OID)+"="+string(o.Data))
	}
	slices.Sort(out)
	return out
}

func TestFetchObjectsCollectsAllBundles(t *testing.T) {
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a"), oidEntry(oidB, "b")),
		objectBundle(t, "b2", 11, oidEntry(oidC, "c")),
	)
	c := newTestClient(t, srv, Options{})

	var progress Counter
	objs, err := c.FetchObjects(context.Background(), &progress)
	require.NoError(t, err)
	assert.Equal(t, []string{oidA + "=a", oidB + "=b", oidC + "=c"}, sortedObjects(objs))

	assert.Equal(t, 2, progress.Total())
	assert.Equal(t, 2, progress.Completed())
	done, doneErr := progress.Finished()
	assert.True(t, done)
	assert.NoError(t, doneErr)
}

func TestFetchObjectsSkipsCorruptBundle(t *testing.T) {
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a")),
		rawBundle("b-corrupt", 11, "this is not a bundle"),
		objectBundle(t, "b3", 12, oidEntry(oidB, "b")),
	)
	c := newTestClient(t, srv, Options{Concurrency: 2})

	var progress Counter
	objs, err := c.FetchObjects(context.Background(), &progress)
	require.NoError(t, err)
	assert.Equal(t, []string{oidA + "=a", oidB + "=b"}, sortedObjects(objs))
	assert.Equal(t, 3, progress.Total())
	assert.Equal(t, 3, progress.Completed())
}

func TestFetchObjectsSkipsBinaryBundle(t *testing.T) {
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a")),
		ledgertest.Record{ID: "b-bin", Height: 11, Tags: repoTags(TypeObjectsBundle), Data: []byte{0xff, 0xfe, 0x00, 0x80, 0x81}},
		objectBundle(t, "b3", 12, oidEntry(oidB, "b")),
	)
	c := newTestClient(t, srv, Options{Concurrency: 1})

	var progress Counter
	objs, err := c.FetchObjects(context.Background(), &progress)
	require.NoError(t, err)
	assert.Equal(t, []string{oidA + "=a", oidB + "=b"}, sortedObjects(objs))
	assert.Equal(t, 3, progress.Completed())
	assert.Equal(t, 3, srv.Fetches(), "a corrupt bundle is downloaded once")
}

func TestFetchObjectsSkipsCompressedBinaryBundle(t *testing.T) {
	srv := ledgertest.NewServer(t,
		ledgertest.Record{ID: "b-bin", Height: 11, Tags: repoTags(TypeObjectsBundle), Data: []byte{0x00, 0x9f, 0x92, 0x96}},
		objectBundle(t, "b2", 12, oidEntry(oidC, "c")),
	)
	srv.CompressPayloads(true)
	c := newTestClient(t, srv, Options{})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{oidC + "=c"}, sortedObjects(objs))
}

func TestFetchObjectsSkipsOversizedBundle(t *testing.T) {
	big := objectBundle(t, "b-big", 11, oidEntry(oidB, strings.Repeat("x", 4096)))
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a")),
		big,
	)
	lc, err := ledger.NewClient(srv.URL, ledger.ClientOptions{
		MaxAttempts:     1,
		MaxPayloadBytes: 1024,
	})
	require.NoError(t, err)
	c := New(testRepo(), lc, lc, Options{})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{oidA + "=a"}, sortedObjects(objs))
}

func TestFetchObjectsKeepsDuplicatesAcrossBundles(t *testing.T) {
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a")),
		objectBundle(t, "b2", 11, oidEntry(oidA, "a")),
	)
	c := newTestClient(t, srv, Options{})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, objs, 2)
}

func TestFetchObjectsIgnoresItemsWithoutOid(t *testing.T) {
	untagged := bundle.Entry{Tags: []ledger.Tag{{Name: TagType, Value: TypeGitObject}}, Data: []byte("x")}
	twoOids := bundle.Entry{
		Tags: []ledger.Tag{{Name: TagOid, Value: oidB}, {Name: TagOid, Value: oidC}},
		Data: []byte("first-wins"),
	}
	srv := ledgertest.NewServer(t, objectBundle(t, "b1", 10, untagged, twoOids))
	c := newTestClient(t, srv, Options{})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{oidB + "=first-wins"}, sortedObjects(objs))
}

func TestFetchObjectsSameResultAtAnyConcurrency(t *testing.T) {
	var records []ledgertest.Record
	oids := []string{oidA, oidB, oidC}
	for i := 0; i < 9; i++ {
		oid := oids[i%len(oids)]
		records = append(records, objectBundle(t, "bundle-"+string(rune('a'+i)), int64(i+1),
			oidEntry(oid, strings.Repeat("x", i+1))))
	}
	records = append(records, rawBundle("broken", 20, `{"items":`))
	srv := ledgertest.NewServer(t, records...)

	var want []string
	for _, n := range []int{0, 1, 3, 16} {
		c := newTestClient(t, srv, Options{Concurrency: n})
		objs, err := c.FetchObjects(context.Background(), nil)
		require.NoError(t, err, "concurrency %d", n)
		got := sortedObjects(objs)
		if want == nil {
			want = got
			require.Len(t, want, 9)
			continue
		}
		assert.Equal(t, want, got, "concurrency %d", n)
	}
}

func TestFetchObjectsPayloadFailureIsFatal(t *testing.T) {
	srv := ledgertest.NewServer(t,
		objectBundle(t, "b1", 10, oidEntry(oidA, "a")),
		objectBundle(t, "b2", 11, oidEntry(oidB, "b")),
	)
	srv.FailData("b2", http.StatusServiceUnavailable)
	c := newTestClient(t, srv, Options{})

	var progress Counter
	objs, err := c.FetchObjects(context.Background(), &progress)
	require.Error(t, err)
	assert.Nil(t, objs)
	assert.Equal(t, ledger.ErrPayloadFetchFailed, ledger.CategoryOf(err))
	assert.Contains(t, err.Error(), "b2")

	done, doneErr := progress.Finished()
	assert.True(t, done)
	assert.Error(t, doneErr)
}

func TestFetchObjectsQueryFailureSkipsProgress(t *testing.T) {
	c := New(testRepo(), failingQuerier{}, nil, Options{})

	var progress Counter
	_, err := c.FetchObjects(context.Background(), &progress)
	require.Error(t, err)
	done, _ := progress.Finished()
	assert.False(t, done)
}

const badItemBundle = `{"items":[
	{"id":"bad","tags":[{"name":"T2lk","value":"MTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMTExMQ"}],"data":"***"},
	{"id":"good","tags":[{"name":"T2lk","value":"MjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMjIyMg"}],"data":"b2s"}
]}`

func TestFetchObjectsSkipsUndecodableItem(t *testing.T) {
	srv := ledgertest.NewServer(t, rawBundle("mixed", 10, badItemBundle))
	c := newTestClient(t, srv, Options{})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{oidB + "=ok"}, sortedObjects(objs))
}

func TestFetchObjectsStrictItems(t *testing.T) {
	srv := ledgertest.NewServer(t, rawBundle("mixed", 10, badItemBundle))
	c := newTestClient(t, srv, Options{StrictItems: true})

	_, err := c.FetchObjects(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, ledger.ErrItemDecodeFailed, ledger.CategoryOf(err))
	assert.Contains(t, err.Error(), "mixed")
}

func TestFetchObjectsNonCorruptUnbundleErrorIsFatal(t *testing.T) {
	srv := ledgertest.NewServer(t, objectBundle(t, "b1", 10, oidEntry(oidA, "a")))
	c := newTestClient(t, srv, Options{Unbundler: brokenUnbundler{}})

	_, err := c.FetchObjects(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unbundle b1")
}

func TestFetchObjectsRespectsConcurrencyLimit(t *testing.T) {
	srv := ledgertest.NewServer(t)
	for i := 0; i < 12; i++ {
		srv.Add(objectBundle(t, "b"+string(rune('a'+i)), int64(i+1), oidEntry(oidA, "a")))
	}
	lc, err := ledger.NewClient(srv.URL, ledger.ClientOptions{})
	require.NoError(t, err)
	fetcher := &gaugedFetcher{next: lc}
	c := New(testRepo(), lc, fetcher, Options{Concurrency: 3})

	objs, err := c.FetchObjects(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, objs, 12)
	assert.LessOrEqual(t, fetcher.peak.Load(), int64(3))
}

func TestCounterTracksProgress(t *testing.T) {
	var c Counter
	c.Start(2)
	c.Increment()
	c.Done(nil)
	done, err := c.Finished()
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Equal(t, 1, c.Completed())
}

type failingQuerier struct{}

func (failingQuerier) Transactions(context.Context, ledger.Query) ([]ledger.Record, error) {
	return nil, errors.New("gateway down")
}

type brokenUnbundler struct{ bundle.Decoder }

func (brokenUnbundler) Unbundle([]byte) ([]bundle.Item, error) {
	return nil, errors.New("decoder crashed")
}

type gaugedFetcher struct {
	next     PayloadFetcher
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *gaugedFetcher) Fetch(ctx context.Context, id string, mode ledger.FetchMode) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return f.next.Fetch(ctx, id, mode)
}
