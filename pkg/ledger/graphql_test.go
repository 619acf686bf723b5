package ledger_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/ledger/ledgertest"
)

func newTestClient(t *testing.T, baseURL string, pageSize int) *ledger.Client {
	t.Helper()
	c, err := ledger.NewClient(baseURL, ledger.ClientOptions{
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		PageSize:    pageSize,
	})
	require.NoError(t, err)
	return c
}

func TestTransactionsFiltersByOwnerAndTags(t *testing.T) {
	srv := ledgertest.NewServer(t,
		ledgertest.Record{ID: "a", Height: 10, Tags: []ledger.Tag{{Name: "Type", Value: "update-ref"}, {Name: "Ref", Value: "refs/heads/main"}}},
		ledgertest.Record{ID: "b", Height: 11, Tags: []ledger.Tag{{Name: "Type", Value: "git-object"}}},
		ledgertest.Record{ID: "c", Owner: "someone-else", Height: 12, Tags: []ledger.Tag{{Name: "Type", Value: "update-ref"}}},
	)
	c := newTestClient(t, srv.URL, 100)

	records, err := c.Transactions(context.Background(), ledger.Query{
		Owners: []string{ledgertest.Owner},
		Tags:   []ledger.Filter{ledger.TagFilter("Type", "update-ref")},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, ledgertest.Owner, rec.Owner)
	assert.True(t, rec.Confirmed())
	height, ok := rec.Height()
	assert.True(t, ok)
	assert.Equal(t, int64(10), height)
	ref, ok := rec.Tags.Get("Ref")
	assert.True(t, ok)
	assert.Equal(t, "refs/heads/main", ref)
}

func TestTransactionsUnconfirmedRecordHasNoBlock(t *testing.T) {
	srv := ledgertest.NewServer(t, ledgertest.Record{ID: "pending"})
	c := newTestClient(t, srv.URL, 100)

	records, err := c.Transactions(context.Background(), ledger.Query{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Confirmed())
	_, ok := records[0].Height()
	assert.False(t, ok)
}

func TestTransactionsFollowsPagination(t *testing.T) {
	var recs []ledgertest.Record
	for i := 0; i < 7; i++ {
		recs = append(recs, ledgertest.Record{ID: fmt.Sprintf("tx-%d", i), Height: int64(100 + i)})
	}
	srv := ledgertest.NewServer(t, recs...)
	c := newTestClient(t, srv.URL, 3)

	records, err := c.Transactions(context.Background(), ledger.Query{})
	require.NoError(t, err)
	assert.Len(t, records, 7)
	assert.Equal(t, 3, srv.Queries())

	seen := make(map[string]bool)
	for _, r := range records {
		assert.False(t, seen[r.ID], "duplicate record %s", r.ID)
		seen[r.ID] = true
	}
}

func TestTransactionsRespectsLimit(t *testing.T) {
	var recs []ledgertest.Record
	for i := 0; i < 25; i++ {
		recs = append(recs, ledgertest.Record{ID: fmt.Sprintf("tx-%d", i), Height: int64(i + 1)})
	}
	srv := ledgertest.NewServer(t, recs...)
	c := newTestClient(t, srv.URL, 10)

	records, err := c.Transactions(context.Background(), ledger.Query{Limit: 12})
	require.NoError(t, err)
	assert.Len(t, records, 12)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[0].First)
	require.NotNil(t, reqs[1].First)
	assert.Equal(t, 10, *reqs[0].First)
	assert.Equal(t, 2, *reqs[1].First)
	assert.Equal(t, "10", reqs[1].After)
}

func TestTransactionsSendsTagFilters(t *testing.T) {
	srv := ledgertest.NewServer(t)
	c := newTestClient(t, srv.URL, 100)

	_, err := c.Transactions(context.Background(), ledger.Query{
		Owners: []string{ledgertest.Owner},
		Tags: []ledger.Filter{
			ledger.TagFilter("Type", "git-object"),
			ledger.TagFilter("Oid", "abc"),
		},
		Limit: 1,
	})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{ledgertest.Owner}, reqs[0].Owners)
	assert.Equal(t, []ledger.Filter{
		{Name: "Type", Values: []string{"git-object"}},
		{Name: "Oid", Values: []string{"abc"}},
	}, reqs[0].Tags)
}

func TestTransactionsGraphQLErrorsAreQueryFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"too many tag filters"}]}`))
	}))
	defer ts.Close()
	c := newTestClient(t, ts.URL, 100)

	_, err := c.Transactions(context.Background(), ledger.Query{})
	require.Error(t, err)
	assert.Equal(t, ledger.ErrQueryFailed, ledger.CategoryOf(err))
	assert.Contains(t, err.Error(), "too many tag filters")
}

func TestTransactionsMalformedResponseIsQueryFailed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "<html>gateway timeout</html>"},
		{name: "missing data", body: `{}`},
		{name: "missing transactions", body: `{"data":{}}`},
		{name: "edge without id", body: `{"data":{"transactions":{"pageInfo":{"hasNextPage":false},"edges":[{"cursor":"1","node":{"tags":[]}}]}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()
			c := newTestClient(t, ts.URL, 100)

			_, err := c.Transactions(context.Background(), ledger.Query{})
			require.Error(t, err)
			assert.Equal(t, ledger.ErrQueryFailed, ledger.CategoryOf(err))
		})
	}
}

func TestTransactionsUnreachableIsQueryFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()
	c := newTestClient(t, url, 100)

	_, err := c.Transactions(context.Background(), ledger.Query{})
	require.Error(t, err)
	assert.Equal(t, ledger.ErrQueryFailed, ledger.CategoryOf(err))
}

func TestTransactionsSetsRequestID(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"data":{"transactions":{"pageInfo":{"hasNextPage":false},"edges":[]}}}`))
	}))
	defer ts.Close()
	c := newTestClient(t, ts.URL, 100)

	_, err := c.Transactions(context.Background(), ledger.Query{})
	require.NoError(t, err)
	assert.Len(t, got, 36)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "https://", "::"} {
		_, err := ledger.NewClient(raw, ledger.ClientOptions{})
		assert.Error(t, err, raw)
	}
}

func TestNewClientDefaultsToPublicGateway(t *testing.T) {
	c, err := ledger.NewClient("", ledger.ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultGatewayURL, c.BaseURL())
}
