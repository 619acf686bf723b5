// Package ledgertest provides an in-process ledger gateway for tests: a
// GraphQL indexing endpoint that validates incoming documents against an
// Arweave-like schema, and a payload endpoint serving record data by id.
package ledgertest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/odvcencio/gitweave/pkg/ledger"
)

// Owner is a well-formed ledger address for fixtures.
const Owner = "vLRHFqCw1uHu75xqB4fCDW-QxpkpJxBtFD9g4QYUbfw"

const schemaSDL = `
type Query {
  transactions(
    ids: [ID!]
    owners: [String!]
    tags: [TagFilter!]
    first: Int = 10
    after: String
    sort: SortOrder = HEIGHT_DESC
  ): TransactionConnection!
}

enum SortOrder {
  HEIGHT_ASC
  HEIGHT_DESC
}

input TagFilter {
  name: String!
  values: [String!]!
}

type TransactionConnection {
  pageInfo: PageInfo!
  edges: [TransactionEdge!]!
}

type PageInfo {
  hasNextPage: Boolean!
}

type TransactionEdge {
  cursor: String!
  node: Transaction!
}

type Transaction {
  id: ID!
  owner: Owner!
  tags: [Tag!]!
  block: Block
}

type Owner {
  address: String!
  key: String!
}

type Tag {
  name: String!
  value: String!
}

type Block {
  id: ID!
  height: Int!
  timestamp: Int!
}
`

// Record is a fixture transaction. Height 0 means unconfirmed.
type Record struct {
	ID     string
	Owner  string
	Tags   []ledger.Tag
	Height int64
	Data   []byte
}

// Server is a fake gateway backed by an httptest.Server.
type Server struct {
	*httptest.Server

	schema *ast.Schema

	mu         sync.Mutex
	records    []Record
	dataStatus map[string]int
	compress   bool
	lastVars   []Variables

	queries atomic.Int64
	fetches atomic.Int64
}

// Variables are the decoded variables of one GraphQL request.
type Variables struct {
	Owners []string        `json:"owners"`
	Tags   []ledger.Filter `json:"tags"`
	First  *int            `json:"first"`
	After  string          `json:"after"`
}

// NewServer starts a fake gateway holding records. It is closed when the
// test finishes.
func NewServer(t testing.TB, records ...Record) *Server {
	t.Helper()
	schema, err := gqlparser.LoadSchema(&ast.Source{Name: "arweave.graphql", Input: schemaSDL})
	if err != nil {
		t.Fatalf("load schema: %v", err)
	}
	s := &Server{
		schema:     schema,
		dataStatus: make(map[string]int),
	}
	s.Add(records...)
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// Add appends records. Owner defaults to the Owner constant.
func (s *Server) Add(records ...Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.Owner == "" {
			r.Owner = Owner
		}
		s.records = append(s.records, r)
	}
}

// FailData makes payload requests for id answer with status.
func (s *Server) FailData(id string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataStatus[id] = status
}

// CompressPayloads toggles zstd payload responses for clients that accept them.
func (s *Server) CompressPayloads(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compress = on
}

// Queries returns the number of GraphQL requests served.
func (s *Server) Queries() int {
	return int(s.queries.Load())
}

// Fetches returns the number of payload requests served.
func (s *Server) Fetches() int {
	return int(s.fetches.Load())
}

// Requests returns the variables of every GraphQL request seen so far.
func (s *Server) Requests() []Variables {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lastVars)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/graphql" {
		s.serveGraphQL(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.serveData(w, r, strings.TrimPrefix(r.URL.Path, "/"))
}

func (s *Server) serveGraphQL(w http.ResponseWriter, r *http.Request) {
	s.queries.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Query         string          `json:"query"`
		OperationName string          `json:"operationName"`
		Variables     json.RawMessage `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "failed to parse body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, errs := gqlparser.LoadQuery(s.schema, req.Query); errs != nil {
		writeJSON(w, map[string]any{"errors": errs})
		return
	}
	var vars Variables
	if len(req.Variables) > 0 {
		if err := json.Unmarshal(req.Variables, &vars); err != nil {
			writeJSON(w, map[string]any{"errors": gqlerror.List{gqlerror.Errorf("invalid variables: %v", err)}})
			return
		}
	}

	s.mu.Lock()
	s.lastVars = append(s.lastVars, vars)
	matched := s.match(vars)
	s.mu.Unlock()

	first := 10
	if vars.First != nil {
		first = *vars.First
	}
	start := 0
	if vars.After != "" {
		n, err := strconv.Atoi(vars.After)
		if err != nil {
			writeJSON(w, map[string]any{"errors": gqlerror.List{gqlerror.Errorf("invalid cursor %q", vars.After)}})
			return
		}
		start = n
	}
	start = min(start, len(matched))
	end := min(start+first, len(matched))

	edges := make([]map[string]any, 0, end-start)
	for i := start; i < end; i++ {
		rec := matched[i]
		tags := rec.Tags
		if tags == nil {
			tags = []ledger.Tag{}
		}
		node := map[string]any{
			"id":    rec.ID,
			"owner": map[string]any{"address": rec.Owner},
			"tags":  tags,
			"block": nil,
		}
		if rec.Height > 0 {
			node["block"] = map[string]any{"height": rec.Height, "timestamp": 1600000000 + rec.Height}
		}
		edges = append(edges, map[string]any{
			"cursor": strconv.Itoa(i + 1),
			"node":   node,
		})
	}
	writeJSON(w, map[string]any{
		"data": map[string]any{
			"transactions": map[string]any{
				"pageInfo": map[string]any{"hasNextPage": end < len(matched)},
				"edges":    edges,
			},
		},
	})
}

// match filters records and orders them pending first, then by height
// descending, newest insertion first within a height.
func (s *Server) match(vars Variables) []Record {
	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if len(vars.Owners) > 0 && !slices.Contains(vars.Owners, rec.Owner) {
			continue
		}
		if !matchesTags(rec.Tags, vars.Tags) {
			continue
		}
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		ha, hb := a.Height, b.Height
		if ha == 0 {
			ha = 1 << 62
		}
		if hb == 0 {
			hb = 1 << 62
		}
		switch {
		case ha > hb:
			return -1
		case ha < hb:
			return 1
		default:
			return 0
		}
	})
	return out
}

func matchesTags(tags []ledger.Tag, filters []ledger.Filter) bool {
	for _, f := range filters {
		found := false
		for _, t := range tags {
			if t.Name == f.Name && slices.Contains(f.Values, t.Value) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Server) serveData(w http.ResponseWriter, r *http.Request, id string) {
	s.fetches.Add(1)
	s.mu.Lock()
	status, failing := s.dataStatus[id]
	compress := s.compress
	var data []byte
	found := false
	for _, rec := range s.records {
		if rec.ID == id {
			data, found = rec.Data, true
			break
		}
	}
	s.mu.Unlock()

	if failing {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	if compress && strings.Contains(r.Header.Get("Accept-Encoding"), "zstd") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
		w.Header().Set("Content-Encoding", "zstd")
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}
