package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/warpfork/go-errcat"
)

const headerRequestID = "X-Request-Id"

type graphqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type graphqlResponse struct {
	Data *struct {
		Transactions *transactionConnection `json:"transactions"`
	} `json:"data"`
	Errors gqlerror.List `json:"errors,omitempty"`
}

type transactionConnection struct {
	PageInfo struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"pageInfo"`
	Edges []struct {
		Cursor string          `json:"cursor"`
		Node   transactionNode `json:"node"`
	} `json:"edges"`
}

type transactionNode struct {
	ID    string `json:"id"`
	Owner struct {
		Address string `json:"address"`
	} `json:"owner"`
	Tags  Tags   `json:"tags"`
	Block *Block `json:"block"`
}

// Transactions runs q against the indexing service, following pagination
// until q's limit is reached or no pages remain. Records come back in the
// service's HEIGHT_DESC order.
//
// Failures carry ErrQueryFailed. Transport-level retries are the only
// retries performed.
func (c *Client) Transactions(ctx context.Context, q Query) ([]Record, error) {
	limit := q.limit()
	requestID := uuid.NewString()
	log := c.log.With().Str("request_id", requestID).Logger()

	var out []Record
	after := ""
	pages := 0
	for len(out) < limit {
		first := min(limit-len(out), c.pageSize)
		conn, err := c.transactionsPage(ctx, requestID, q, first, after)
		if err != nil {
			log.Debug().Err(err).Int("page", pages).Msg("transactions query failed")
			return nil, err
		}
		pages++
		for _, edge := range conn.Edges {
			if strings.TrimSpace(edge.Node.ID) == "" {
				return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): malformed response: edge without id", requestID)
			}
			out = append(out, Record{
				ID:    edge.Node.ID,
				Owner: edge.Node.Owner.Address,
				Tags:  edge.Node.Tags,
				Block: edge.Node.Block,
			})
			if len(out) == limit {
				break
			}
		}
		if !conn.PageInfo.HasNextPage || len(conn.Edges) == 0 {
			break
		}
		after = conn.Edges[len(conn.Edges)-1].Cursor
	}

	log.Debug().Int("records", len(out)).Int("pages", pages).Int("limit", limit).Msg("transactions query")
	return out, nil
}

func (c *Client) transactionsPage(ctx context.Context, requestID string, q Query, first int, after string) (*transactionConnection, error) {
	vars := map[string]any{
		"first": first,
	}
	if len(q.Owners) > 0 {
		vars["owners"] = q.Owners
	}
	if len(q.Tags) > 0 {
		vars["tags"] = q.Tags
	}
	if after != "" {
		vars["after"] = after
	}
	payload, err := json.Marshal(graphqlRequest{
		Query:         transactionsQuery,
		OperationName: transactionsOperation,
		Variables:     vars,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerRequestID, requestID)

	resp, err := retryDo(c.httpClient, req, c.policy())
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("query transactions: %w", ctx.Err())
		}
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): %v", requestID, err)
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, responseLimitQuery)
	if err != nil {
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): read response: %v", requestID, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): status %d: %s", requestID, resp.StatusCode, msg)
	}

	var gr graphqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): decode response: %v", requestID, err)
	}
	if len(gr.Errors) > 0 {
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): %v", requestID, gr.Errors)
	}
	if gr.Data == nil || gr.Data.Transactions == nil {
		return nil, errcat.Errorf(ErrQueryFailed, "query transactions (request %s): malformed response: missing data.transactions", requestID)
	}
	return gr.Data.Transactions, nil
}
