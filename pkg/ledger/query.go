package ledger

import (
	"fmt"
	"math"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Unbounded is the limit used by enumeration queries. It matches the
// largest page request the indexing service accepts.
const Unbounded = math.MaxInt32

// Filter restricts a query to records carrying a tag called Name whose value
// is one of Values. Filters in one query are ANDed.
type Filter struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// TagFilter is shorthand for a single-value Filter.
func TagFilter(name, value string) Filter {
	return Filter{Name: name, Values: []string{value}}
}

// Query describes one transactions lookup.
type Query struct {
	Owners []string
	Tags   []Filter
	// Limit caps the number of returned records. Values <= 0 mean Unbounded.
	Limit int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return Unbounded
	}
	return q.Limit
}

const transactionsOperation = "Transactions"

const transactionsQuery = `query Transactions($owners: [String!], $tags: [TagFilter!], $first: Int, $after: String) {
  transactions(owners: $owners, tags: $tags, first: $first, after: $after, sort: HEIGHT_DESC) {
    pageInfo {
      hasNextPage
    }
    edges {
      cursor
      node {
        id
        owner {
          address
        }
        tags {
          name
          value
        }
        block {
          height
          timestamp
        }
      }
    }
  }
}`

// TransactionsQuery returns the GraphQL document sent for every lookup.
func TransactionsQuery() string {
	return transactionsQuery
}

func init() {
	doc, err := parser.ParseQuery(&ast.Source{Name: "transactions.graphql", Input: transactionsQuery})
	if err != nil {
		panic(fmt.Sprintf("ledger: invalid transactions query: %v", err))
	}
	if doc.Operations.ForName(transactionsOperation) == nil {
		panic("ledger: transactions query has no " + transactionsOperation + " operation")
	}
}
