package remote

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/gitweave/pkg/bundle"
	"github.com/odvcencio/gitweave/pkg/ledger"
	"github.com/odvcencio/gitweave/pkg/ledger/ledgertest"
)

const testRepoName = "demo"

func testRepo() Repository {
	return Repository{Raw: "gitopia://" + ledgertest.Owner + "/" + testRepoName, Owner: ledgertest.Owner, Name: testRepoName}
}

func repoTags(typ string, extra ...ledger.Tag) []ledger.Tag {
	tags := []ledger.Tag{
		{Name: TagType, Value: typ},
		{Name: TagRepo, Value: testRepoName},
		{Name: TagVersion, Value: DefaultProtocolVersion},
	}
	return append(tags, extra...)
}

// updateRef builds an update-ref record. unixTime < 0 omits the tag.
func updateRef(t *testing.T, id, ref string, height int64, unixTime int64, oid string, numCommits int) ledgertest.Record {
	t.Helper()
	extra := []ledger.Tag{{Name: TagRef, Value: ref}}
	if unixTime >= 0 {
		extra = append(extra, ledger.Tag{Name: TagUnixTime, Value: strconv.FormatInt(unixTime, 10)})
	}
	var payload any = map[string]any{"oid": oid, "numCommits": numCommits}
	if oid == "" {
		payload = map[string]any{"oid": nil, "numCommits": numCommits}
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return ledgertest.Record{ID: id, Height: height, Tags: repoTags(TypeUpdateRef, extra...), Data: data}
}

func objectBundle(t *testing.T, id string, height int64, entries ...bundle.Entry) ledgertest.Record {
	t.Helper()
	data, err := bundle.Pack(entries)
	require.NoError(t, err)
	return ledgertest.Record{ID: id, Height: height, Tags: repoTags(TypeObjectsBundle), Data: data}
}

func oidEntry(oid, data string) bundle.Entry {
	return bundle.Entry{
		Tags: []ledger.Tag{{Name: TagType, Value: TypeGitObject}, {Name: TagOid, Value: oid}},
		Data: []byte(data),
	}
}

func newTestClient(t *testing.T, srv *ledgertest.Server, opts Options) *Client {
	t.Helper()
	lc, err := ledger.NewClient(srv.URL, ledger.ClientOptions{
		Timeout:     5 * time.Second,
		MaxAttempts: 2,
		RetryDelay:  time.Millisecond,
		PageSize:    50,
	})
	require.NoError(t, err)
	return New(testRepo(), lc, lc, opts)
}
